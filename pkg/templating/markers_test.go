package templating

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFindMarkers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Match
	}{
		{"none", "plain text", nil},
		{"single", "Hi <%= name %>!", []Match{{Start: 3, End: 14, Source: " name "}}},
		{"adjacent", "<%=a%><%=b%>", []Match{
			{Start: 0, End: 6, Source: "a"},
			{Start: 6, End: 12, Source: "b"},
		}},
		{"first closing wins", "<%= '%' %> %>", []Match{{Start: 0, End: 10, Source: " '%' "}}},
		{"unterminated", "x <%= y", nil},
		{"terminated then unterminated", "<%=a%> <%= b", []Match{{Start: 0, End: 6, Source: "a"}}},
		{"plain erb tag is not a marker", "<% a %>", nil},
		{"empty expression", "<%=%>", []Match{{Start: 0, End: 5, Source: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FindMarkers(tt.text)); diff != "" {
				t.Errorf("FindMarkers(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}
