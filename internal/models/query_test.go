package models

import "testing"

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr bool
		wantK   int
	}{
		{"empty question", &QueryRequest{Question: ""}, true, 0},
		{"valid question", &QueryRequest{Question: "what?", TopK: 3}, false, 3},
		{"zero top_k gets default", &QueryRequest{Question: "x"}, false, 5},
		{"top_k clamped to max", &QueryRequest{Question: "x", TopK: 50}, false, 20},
		{"negative top_k rejected", &QueryRequest{Question: "x", TopK: -1}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(5, 20)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.TopK != tt.wantK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantK)
			}
		})
	}
}

func TestChunkID_RoundTrip(t *testing.T) {
	tests := []struct {
		filename string
		index    int
	}{
		{"report.pdf", 0},
		{"report.pdf", 12},
		{"weird:name.pdf", 3},
	}
	for _, tt := range tests {
		id := ChunkID(tt.filename, tt.index)
		filename, index, err := ParseChunkID(id)
		if err != nil {
			t.Fatalf("ParseChunkID(%q) error: %v", id, err)
		}
		if filename != tt.filename || index != tt.index {
			t.Errorf("ParseChunkID(%q) = (%q, %d), want (%q, %d)", id, filename, index, tt.filename, tt.index)
		}
	}
}

func TestParseChunkID_Malformed(t *testing.T) {
	for _, id := range []string{"", "nofile", ":3", "file.pdf:", "file.pdf:x"} {
		if _, _, err := ParseChunkID(id); err == nil {
			t.Errorf("ParseChunkID(%q) expected error", id)
		}
	}
}
