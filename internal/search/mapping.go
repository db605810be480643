package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for quote/source documents.
//
// Text fields use English stemming. user_id, type, source_id and tags use the
// keyword analyzer so they filter exactly. Nothing derived from an encrypted
// field appears in the mapping.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Highlight content - the primary search target for quotes
	contentFieldMapping := bleve.NewTextFieldMapping()
	contentFieldMapping.Analyzer = en.AnalyzerName
	contentFieldMapping.Store = true
	contentFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("content", contentFieldMapping)

	// Source title - primary search target for sources, denormalized on quotes
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	subtitleFieldMapping := bleve.NewTextFieldMapping()
	subtitleFieldMapping.Analyzer = en.AnalyzerName
	subtitleFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("subtitle", subtitleFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = en.AnalyzerName
	authorFieldMapping.Store = true
	authorFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	// --- Keyword fields (exact match) ---

	typeFieldMapping := bleve.NewTextFieldMapping()
	typeFieldMapping.Analyzer = keyword.Name
	typeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("type", typeFieldMapping)

	// user_id scopes every query; never analyzed
	userFieldMapping := bleve.NewTextFieldMapping()
	userFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("user_id", userFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	sourceIDFieldMapping := bleve.NewTextFieldMapping()
	sourceIDFieldMapping.Analyzer = keyword.Name
	sourceIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("source_id", sourceIDFieldMapping)

	// Tags - keyword analyzer keeps compound slugs intact (e.g. "deep-work")
	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	// --- Numeric fields ---

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
