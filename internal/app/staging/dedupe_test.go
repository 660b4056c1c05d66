package staging

import (
	"testing"

	"github.com/heartmarshall/dictimport/internal/domain"
)

func TestDedupeWithinBatch_RemovesExactDuplicate(t *testing.T) {
	row := domain.StagingRow{SourceCode: "TEST", NormalizedWord: "run", Definition: "to move quickly"}
	out := DedupeWithinBatch([]domain.StagingRow{row, row, row})

	if len(out) != 1 {
		t.Fatalf("expected 1 surviving row, got %d", len(out))
	}
}

func TestDedupeWithinBatch_CaseAndWhitespaceInsensitive(t *testing.T) {
	out := DedupeWithinBatch([]domain.StagingRow{
		{SourceCode: "test", NormalizedWord: "RUN", Definition: "to   move quickly"},
		{SourceCode: "TEST", NormalizedWord: "run", Definition: "to move   quickly"},
	})

	if len(out) != 1 {
		t.Fatalf("expected case/whitespace-insensitive dedupe to collapse to 1 row, got %d", len(out))
	}
}

func TestDedupeWithinBatch_DistinctSenseNumbersSurviveSeparately(t *testing.T) {
	n1, n2 := 1, 2
	out := DedupeWithinBatch([]domain.StagingRow{
		{SourceCode: "TEST", NormalizedWord: "bank", Definition: "a financial institution", SenseNumber: &n1},
		{SourceCode: "TEST", NormalizedWord: "bank", Definition: "a financial institution", SenseNumber: &n2},
	})

	if len(out) != 2 {
		t.Fatalf("expected distinct sense numbers to both survive, got %d", len(out))
	}
}

func TestDedupeWithinBatch_DistinctSourcesSurviveSeparately(t *testing.T) {
	out := DedupeWithinBatch([]domain.StagingRow{
		{SourceCode: "SRC_A", NormalizedWord: "run", Definition: "to move quickly"},
		{SourceCode: "SRC_B", NormalizedWord: "run", Definition: "to move quickly"},
	})

	if len(out) != 2 {
		t.Fatalf("expected distinct source codes to both survive, got %d", len(out))
	}
}

func TestDedupeWithinBatch_PreservesFirstSeenOrder(t *testing.T) {
	first := domain.StagingRow{SourceCode: "TEST", NormalizedWord: "alpha", Definition: "first"}
	second := domain.StagingRow{SourceCode: "TEST", NormalizedWord: "beta", Definition: "second"}
	out := DedupeWithinBatch([]domain.StagingRow{first, second, first})

	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].NormalizedWord != "alpha" || out[1].NormalizedWord != "beta" {
		t.Fatalf("expected first-seen order alpha, beta; got %q, %q", out[0].NormalizedWord, out[1].NormalizedWord)
	}
}

func TestDedupeWithinBatch_LongDefinitionKeyIsBounded(t *testing.T) {
	long := make([]byte, maxDedupeKeyLen*2)
	for i := range long {
		long[i] = 'x'
	}
	row1 := domain.StagingRow{SourceCode: "TEST", NormalizedWord: "w", Definition: string(long)}
	row2 := domain.StagingRow{SourceCode: "TEST", NormalizedWord: "w", Definition: string(long) + "tail that differs"}

	out := DedupeWithinBatch([]domain.StagingRow{row1, row2})

	if len(out) != 1 {
		t.Fatalf("expected definitions differing only past the bounded key length to collapse, got %d", len(out))
	}
}
