package table

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValueIsEmpty(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"zero value", Value{}, true},
		{"empty string", String(""), true},
		{"whitespace string", String("   \t"), true},
		{"text", String("Mouse"), false},
		{"zero number", Number(0), false},
		{"false bool", Boolean(false), false},
	}
	for _, tc := range cases {
		if got := tc.v.IsEmpty(); got != tc.want {
			t.Errorf("%s: IsEmpty() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValueText(t *testing.T) {
	if got := Number(12.5).Text(); got != "12.5" {
		t.Errorf("Number(12.5).Text() = %q, want %q", got, "12.5")
	}
	if got := Boolean(true).Text(); got != "true" {
		t.Errorf("Boolean(true).Text() = %q, want %q", got, "true")
	}
	if got := Empty().Text(); got != "" {
		t.Errorf("Empty().Text() = %q, want empty", got)
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	in := []Value{String("caixa"), Number(3), Boolean(true), Empty()}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if !in[i].Equal(out[i]) {
			t.Errorf("value %d: got %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestAddColumnPadsExistingRows(t *testing.T) {
	tbl := New("nome")
	if err := tbl.AppendRow([]Value{String("Mouse")}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	tbl.AddColumn("preco")
	if len(tbl.Rows[0]) != 2 {
		t.Fatalf("row width = %d, want 2", len(tbl.Rows[0]))
	}
	if !tbl.Value(0, "preco").IsEmpty() {
		t.Errorf("padded cell should be empty, got %+v", tbl.Value(0, "preco"))
	}
}

func TestAddColumnIsIdempotent(t *testing.T) {
	tbl := New("nome", "preco")
	if i := tbl.AddColumn("nome"); i != 0 {
		t.Errorf("AddColumn(existing) = %d, want 0", i)
	}
	if len(tbl.Columns) != 2 {
		t.Errorf("columns = %d, want 2", len(tbl.Columns))
	}
}

func TestAppendRowRejectsWideRows(t *testing.T) {
	tbl := New("nome")
	err := tbl.AppendRow([]Value{String("a"), String("b")})
	var malformed *MalformedRecordError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if malformed.Have != 2 || malformed.Want != 1 {
		t.Errorf("error fields Have=%d Want=%d, want 2/1", malformed.Have, malformed.Want)
	}
}

func TestAppendRowPadsShortRows(t *testing.T) {
	tbl := New("nome", "preco")
	if err := tbl.AppendRow([]Value{String("Teclado")}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if !tbl.Value(0, "preco").IsEmpty() {
		t.Errorf("short row should be padded empty")
	}
	if err := tbl.Validate(); err != nil {
		t.Errorf("Validate after padded append: %v", err)
	}
}

func TestDataColumnsExcludesMetadata(t *testing.T) {
	tbl := New("nome", ColSourceFile, "preco", ColSourceRow, ColBatchIndex)
	got := tbl.DataColumns()
	want := []string{"nome", "preco"}
	if len(got) != len(want) {
		t.Fatalf("DataColumns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DataColumns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := New("nome")
	_ = tbl.AppendRow([]Value{String("Mouse")})
	cp := tbl.Clone()
	cp.Set(0, "nome", String("Teclado"))
	if tbl.Value(0, "nome").Str != "Mouse" {
		t.Errorf("mutating clone changed original")
	}
}

func TestMergeUnionsColumnsInFirstAppearanceOrder(t *testing.T) {
	a := New("nome", "preco")
	_ = a.AppendRow([]Value{String("Mouse Gamer"), Number(99.9)})
	b := New("nome", "estoque")
	_ = b.AppendRow([]Value{String("Teclado"), Number(5)})

	merged := Merge([]Source{{File: "a.csv", Table: a}, {File: "b.csv", Table: b}})

	want := []string{"nome", "preco", "estoque", ColSourceFile, ColSourceRow, ColBatchIndex}
	if len(merged.Columns) != len(want) {
		t.Fatalf("columns = %v, want %v", merged.Columns, want)
	}
	for i := range want {
		if merged.Columns[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, merged.Columns[i], want[i])
		}
	}
	if merged.Len() != 2 {
		t.Fatalf("rows = %d, want 2", merged.Len())
	}
	// Column missing from a source reads as empty.
	if !merged.Value(0, "estoque").IsEmpty() {
		t.Errorf("row 0 estoque should be empty, got %+v", merged.Value(0, "estoque"))
	}
	if !merged.Value(1, "preco").IsEmpty() {
		t.Errorf("row 1 preco should be empty")
	}
}

func TestMergeStampsOriginMetadata(t *testing.T) {
	a := New("nome")
	_ = a.AppendRow([]Value{String("Mouse")})
	_ = a.AppendRow([]Value{String("Teclado")})
	b := New("nome")
	_ = b.AppendRow([]Value{String("Monitor")})

	merged := Merge([]Source{{File: "loja1.csv", Table: a}, {File: "loja2.csv", Table: b}})

	if got := merged.Value(1, ColSourceFile).Str; got != "loja1.csv" {
		t.Errorf("row 1 source file = %q, want loja1.csv", got)
	}
	if got := merged.Value(1, ColSourceRow).Num; got != 2 {
		t.Errorf("row 1 source row = %v, want 2", got)
	}
	if got := merged.Value(2, ColBatchIndex).Num; got != 1 {
		t.Errorf("row 2 batch index = %v, want 1", got)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	merged := Merge(nil)
	if merged.Len() != 0 {
		t.Errorf("merged rows = %d, want 0", merged.Len())
	}
}
