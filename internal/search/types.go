package search

// Request describes one query against the document index.
type Request struct {
	Query           string
	Top             int
	ExcludeCategory string
	SemanticRanker  bool
	Captions        bool
}

// Document is one raw hit from the index.
type Document struct {
	ID       string
	Content  string
	Category string
	Score    float64
	Captions []string
}

// Source is a retrieval result the pipeline can ground an answer on.
// Snippet is the single-line content shown to the model.
type Source struct {
	ID      string
	Snippet string
	Score   float64
}
