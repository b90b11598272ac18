package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/squidi0n/fluxao-sub000/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"IssueID", id.NewIssueID, "iss_"},
		{"JobID", id.NewJobID, "job_"},
		{"SubscriberID", id.NewSubscriberID, "sub_"},
		{"ConsentID", id.NewConsentID, "cons_"},
		{"InteractionID", id.NewInteractionID, "intr_"},
		{"AuditID", id.NewAuditID, "adt_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
		{"ScheduleID", id.NewScheduleID, "sched_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixJob)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixJob {
		t.Errorf("Prefix() = %q, want %q", i.Prefix(), id.PrefixJob)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	original := id.NewIssueID()

	parsed, err := id.Parse(original.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != original {
		t.Errorf("round-trip mismatch: %v != %v", parsed, original)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"garbage", "not-a-typeid!!"},
		{"bad suffix", "job_###"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	jobID := id.NewJobID()

	if _, err := id.ParseWithPrefix(jobID.String(), id.PrefixJob); err != nil {
		t.Errorf("ParseWithPrefix with matching prefix: %v", err)
	}
	if _, err := id.ParseWithPrefix(jobID.String(), id.PrefixIssue); err == nil {
		t.Error("ParseWithPrefix with wrong prefix succeeded, want error")
	}
}

func TestTypedParsers(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		parseFn func(string) (id.ID, error)
		wantErr bool
	}{
		{"issue ok", id.NewIssueID().String(), id.ParseIssueID, false},
		{"issue wrong prefix", id.NewJobID().String(), id.ParseIssueID, true},
		{"job ok", id.NewJobID().String(), id.ParseJobID, false},
		{"subscriber ok", id.NewSubscriberID().String(), id.ParseSubscriberID, false},
		{"subscriber wrong prefix", id.NewIssueID().String(), id.ParseSubscriberID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestNil(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := id.NewSubscriberID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("JSON round-trip mismatch: %v != %v", decoded, original)
	}
}

func TestScan(t *testing.T) {
	original := id.NewJobID()

	tests := []struct {
		name string
		src  any
		want id.ID
	}{
		{"string", original.String(), original},
		{"bytes", []byte(original.String()), original},
		{"nil", nil, id.Nil},
		{"empty string", "", id.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			if err := got.Scan(tt.src); err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if got != tt.want {
				t.Errorf("Scan(%v) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("Scan(int) succeeded, want error")
	}
}

func TestValue(t *testing.T) {
	i := id.NewIssueID()
	v, err := i.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != i.String() {
		t.Errorf("Value() = %v, want %q", v, i.String())
	}

	nv, err := id.Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value: %v", err)
	}
	if nv != nil {
		t.Errorf("Nil.Value() = %v, want nil", nv)
	}
}
