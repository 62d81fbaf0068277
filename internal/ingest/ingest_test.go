package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportValue(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		want   string
		wantOK bool
	}{
		{"well-formed entry", map[string]interface{}{"report": `{"status":"on"}`, "timestamp": int64(1)}, `{"status":"on"}`, true},
		{"report is not a string", map[string]interface{}{"report": 42}, "", false},
		{"report key missing", map[string]interface{}{"timestamp": int64(1)}, "", false},
		{"nil values", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := reportValue(tt.values)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, raw)
		})
	}
}
