package ingest

import (
	"strings"
	"testing"
)

func TestExtractText(t *testing.T) {
	page := `<html><head><title>Lyon</title><style>p { color: red }</style></head>
<body><h1>Visiting</h1><p>Lyon sits on the <b>Rhône</b>.</p>
<script>var paris = 1;</script><noscript>enable js</noscript><p>Food</p></body></html>`

	text, err := ExtractText(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	want := "Lyon Visiting Lyon sits on the Rhône . Food"
	if text != want {
		t.Errorf("Expected %q, got %q", want, text)
	}
	if strings.Contains(text, "paris") || strings.Contains(text, "color") {
		t.Error("Script and style contents should be skipped")
	}
}

func TestExtractTextFeedsTokenizer(t *testing.T) {
	text, err := ExtractText(strings.NewReader("<p>Austin</p><p>Texas</p>"))
	if err != nil {
		t.Fatal(err)
	}

	tokens := NewTokenizer(nil).Tokenize(text)
	if len(tokens) != 2 || tokens[0] != "austin" || tokens[1] != "texas" {
		t.Errorf("Adjacent blocks should not merge, got %v", tokens)
	}
}
