package models

// ImportFormat represents the file format for the import template
type ImportFormat string

const (
	ImportFormatJSON ImportFormat = "json"
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// Event types published at a job's terminal transition.
const (
	EventImportCompleted = "import.completed"
	EventImportFailed    = "import.failed"
)

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ProductImportColumns returns the column definitions for product import.
// Header matching during import is case-insensitive.
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "sku", Description: "Unique product SKU (case-insensitive uniqueness)", Required: true, Type: "string", Example: "TSH-BLU-001"},
		{Name: "name", Description: "Product name", Required: false, Type: "string", Example: "Blue Cotton T-Shirt"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: ""},
		{Name: "price", Description: "Product price, plain decimal without currency symbol", Required: false, Type: "number", Example: "29.99"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
	}
}

// UploadResponse is returned by the upload endpoint
type UploadResponse struct {
	JobID string `json:"job_id"`
}
