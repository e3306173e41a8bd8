package ingest

import (
	"strings"
	"testing"

	"github.com/planilimpa/planilimpa/internal/table"
)

func TestParseBasicCSV(t *testing.T) {
	data := "nome,preco,ativo\nMouse Gamer,99.9,true\nTeclado,,false\n"
	tbl, err := Parse(File{Name: "produtos.csv", Data: []byte(data)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tbl.Columns) != 3 {
		t.Fatalf("columns = %v, want 3", tbl.Columns)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	if got := tbl.Value(0, "nome"); got.Kind != table.KindString || got.Str != "Mouse Gamer" {
		t.Errorf("nome = %+v", got)
	}
	if got := tbl.Value(0, "preco"); got.Kind != table.KindNumber || got.Num != 99.9 {
		t.Errorf("preco = %+v, want number 99.9", got)
	}
	if got := tbl.Value(1, "preco"); !got.IsEmpty() {
		t.Errorf("empty cell = %+v, want empty", got)
	}
	if got := tbl.Value(1, "ativo"); got.Kind != table.KindBool || got.Bool {
		t.Errorf("ativo = %+v, want bool false", got)
	}
}

func TestParseSkipsLeadingAndEmptyRows(t *testing.T) {
	data := ",,\n,,\nnome,preco\nMouse,10\n,,\nTeclado,20\n"
	tbl, err := Parse(File{Name: "x.csv", Data: []byte(data)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("rows = %d, want 2 (empty rows skipped)", tbl.Len())
	}
	if tbl.Columns[0] != "nome" {
		t.Errorf("header = %v, want header row found past empty rows", tbl.Columns)
	}
}

func TestParseRaggedRowsGetGeneratedColumns(t *testing.T) {
	data := "nome\nMouse,extra\n"
	tbl, err := Parse(File{Name: "x.csv", Data: []byte(data)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tbl.Columns) != 2 || tbl.Columns[1] != "coluna_2" {
		t.Errorf("columns = %v, want generated coluna_2", tbl.Columns)
	}
	if got := tbl.Value(0, "coluna_2").Str; got != "extra" {
		t.Errorf("extra cell = %q", got)
	}
}

func TestParseEmptyFile(t *testing.T) {
	tbl, err := Parse(File{Name: "vazio.csv", Data: nil})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("rows = %d, want 0", tbl.Len())
	}
}

func TestCleanCell(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Mouse ", "Mouse"},
		{`="0001"`, "0001"},
		{"=SOMA", "SOMA"},
		{`"quoted"`, "quoted"},
		{"\ufeffnome", "nome"},
	}
	for _, tc := range cases {
		if got := CleanCell(tc.in); got != tc.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanHeaderDisambiguatesDuplicates(t *testing.T) {
	got := cleanHeader([]string{"nome", "nome", ""})
	want := []string{"nome", "nome_2", "coluna_3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCoerceScalarIsConservative(t *testing.T) {
	if v := CoerceScalar("9,90"); v.Kind != table.KindString {
		t.Errorf("locale decimal coerced to %+v, want string", v)
	}
	if v := CoerceScalar("42"); v.Kind != table.KindNumber || v.Num != 42 {
		t.Errorf("integer = %+v, want number 42", v)
	}
	if v := CoerceScalar("SKU-001"); v.Kind != table.KindString {
		t.Errorf("code coerced to %+v, want string", v)
	}
}

func TestCoerceScalarOnlyWhenLossless(t *testing.T) {
	// Leading and trailing zeros carry identity and money semantics; a
	// coercion that cannot reproduce the input bytes must not happen.
	cases := []string{"0012", "9.90", "007", "1e3", "+5", "1.250"}
	for _, in := range cases {
		v := CoerceScalar(in)
		if v.Kind != table.KindString {
			t.Errorf("CoerceScalar(%q) = %+v, want string preserved", in, v)
		}
		if v.Text() != in {
			t.Errorf("CoerceScalar(%q) round-trips as %q", in, v.Text())
		}
	}

	// Distinct code lexemes must stay distinct cell values.
	if CoerceScalar("0012").Equal(CoerceScalar("12")) {
		t.Errorf("distinct codes %q and %q coerced to the same value", "0012", "12")
	}

	// Lossless lexemes still coerce.
	if v := CoerceScalar("99.9"); v.Kind != table.KindNumber || v.Num != 99.9 {
		t.Errorf("lossless decimal = %+v, want number 99.9", v)
	}
	if v := CoerceScalar("-3"); v.Kind != table.KindNumber || v.Num != -3 {
		t.Errorf("negative integer = %+v, want number -3", v)
	}
}

func TestParseBatchMergesAndStampsOrigins(t *testing.T) {
	files := []File{
		{Name: "loja1.csv", Data: []byte("nome,preco\nMouse Gamer,99\n")},
		{Name: "loja2.csv", Data: []byte("nome,estoque\nmouse gamer,5\n")},
	}
	merged, err := ParseBatch(files)
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	if merged.Len() != 2 {
		t.Fatalf("rows = %d, want 2", merged.Len())
	}
	cols := strings.Join(merged.DataColumns(), ",")
	if cols != "nome,preco,estoque" {
		t.Errorf("data columns = %q", cols)
	}
	if got := merged.Value(1, table.ColSourceFile).Str; got != "loja2.csv" {
		t.Errorf("source file = %q, want loja2.csv", got)
	}
}

func TestParseSanitizesInvalidUTF8(t *testing.T) {
	data := append([]byte("nome\nCaf"), 0xFF, 0xFE, '\n')
	_, err := Parse(File{Name: "x.csv", Data: data})
	if err != nil {
		t.Fatalf("Parse with invalid UTF-8: %v", err)
	}
}
