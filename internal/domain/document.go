package domain

// SourceKind declares how a source document is encoded.
type SourceKind string

const (
	SourceMarkdown SourceKind = "markdown"
	SourceText     SourceKind = "text"
	SourceHTML     SourceKind = "html"
	SourcePDF      SourceKind = "pdf"
)

// Section is one named part of a document, in original order.
type Section struct {
	Name string
	Text string
}

// TableDescriptor summarizes a table found inside the document body.
type TableDescriptor struct {
	Name        string
	Description string
	DataHint    string
}

// NormalizedDocument is the structured form of the source document.
// RawText is always populated; every structured field may be empty when
// the structuring step degraded.
type NormalizedDocument struct {
	Title      string
	Abstract   string
	Keywords   []string
	Sections   []Section
	Tables     []TableDescriptor
	References []string
	RawText    string
}

// Degraded reports whether only the raw text survived ingestion.
func (d NormalizedDocument) Degraded() bool {
	return d.Title == "" && d.Abstract == "" && len(d.Sections) == 0
}

// DataAsset describes one auxiliary tabular input discovered during the
// DataScan phase. It is read-only after discovery.
type DataAsset struct {
	Path        string
	FileName    string
	FileType    string
	Columns     []string
	RowCount    int
	Sample      []map[string]string
	Description string
}
