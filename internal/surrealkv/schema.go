package surrealkv

// SchemaSQL defines the collection registry. Collection data tables are
// defined on demand by CreateCollection.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS kv_collection SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON kv_collection TYPE string;
    DEFINE FIELD IF NOT EXISTS fields ON kv_collection FLEXIBLE TYPE object DEFAULT {};
    DEFINE FIELD IF NOT EXISTS created ON kv_collection TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS kv_collection_name ON kv_collection FIELDS name UNIQUE;
`

// registryTable is the table holding one record per collection.
const registryTable = "kv_collection"

// dataTable returns the table holding a collection's records.
func dataTable(name string) string {
	return "kvdata_" + name
}
