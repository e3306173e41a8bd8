package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/planilimpa/planilimpa/internal/dedupe"
	"github.com/planilimpa/planilimpa/internal/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	a := table.New("nome", "preco")
	if err := a.AppendRow([]table.Value{table.String("Mouse Gamer"), table.Number(99.9)}); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendRow([]table.Value{table.String("mouse gamer"), table.Number(89.9)}); err != nil {
		t.Fatal(err)
	}
	return table.Merge([]table.Source{{File: "loja1.csv", Table: a}})
}

func TestWriteTableCSVExcludesMetadataByDefault(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTableCSV(&buf, sampleTable(t), false); err != nil {
		t.Fatalf("WriteTableCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "nome,preco" {
		t.Errorf("header = %q, want metadata excluded", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("lines = %d, want header + 2 rows", len(lines))
	}
}

func TestWriteTableCSVIncludesMetadataWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTableCSV(&buf, sampleTable(t), true); err != nil {
		t.Fatalf("WriteTableCSV: %v", err)
	}
	header := strings.Split(strings.TrimSpace(buf.String()), "\n")[0]
	if !strings.Contains(header, table.ColSourceFile) {
		t.Errorf("header = %q, want %s present", header, table.ColSourceFile)
	}
}

func TestWriteTableJSONPreservesColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTableJSON(&buf, sampleTable(t), false); err != nil {
		t.Fatalf("WriteTableJSON: %v", err)
	}
	out := buf.String()
	if !json.Valid([]byte(out)) {
		t.Fatalf("output is not valid JSON: %s", out)
	}
	if strings.Index(out, `"nome"`) > strings.Index(out, `"preco"`) {
		t.Errorf("column order not preserved: %s", out)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["preco"] != 99.9 {
		t.Errorf("preco = %v, want 99.9", rows[0]["preco"])
	}
}

func TestWriteDuplicatesCSVJoinsByRowIndex(t *testing.T) {
	tbl := sampleTable(t)
	report := &dedupe.Report{Groups: []dedupe.Result{{
		Tipo:         "Nome idêntico",
		Valor:        "Mouse Gamer",
		Linhas:       []int{0, 1},
		Similaridade: 1.0,
		Arquivos:     []string{"loja1.csv"},
	}}}

	var buf bytes.Buffer
	if err := WriteDuplicatesCSV(&buf, tbl, report); err != nil {
		t.Fatalf("WriteDuplicatesCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 members", len(lines))
	}
	if lines[0] != "grupo,tipo,similaridade,linha,linhaArquivo,arquivo,nome,preco" {
		t.Errorf("header = %q", lines[0])
	}
	// linha is the zero-based analyzed-table index; linhaArquivo is the
	// one-based row within the origin file.
	if !strings.HasPrefix(lines[1], "1,Nome idêntico,1.0000,0,1,loja1.csv,Mouse Gamer") {
		t.Errorf("member line = %q", lines[1])
	}
	if !strings.Contains(lines[2], ",1,2,loja1.csv,mouse gamer") {
		t.Errorf("second member line = %q", lines[2])
	}
}

func TestWriteDuplicatesJSONContract(t *testing.T) {
	report := &dedupe.Report{Groups: []dedupe.Result{{
		Tipo:         "Nome similar",
		Valor:        "Produto ABC",
		Linhas:       []int{2, 5},
		Similaridade: 0.9,
		Arquivos:     []string{"a.csv", "b.csv"},
		CrossFile:    true,
	}}}

	var buf bytes.Buffer
	if err := WriteDuplicatesJSON(&buf, report); err != nil {
		t.Fatalf("WriteDuplicatesJSON: %v", err)
	}
	var decoded struct {
		Grupos []struct {
			Tipo          string  `json:"tipo"`
			Valor         string  `json:"valor"`
			Linhas        []int   `json:"linhas"`
			Similaridade  float64 `json:"similaridade"`
			EntreArquivos bool    `json:"entreArquivos"`
		} `json:"grupos"`
		Parcial bool `json:"parcial"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Grupos) != 1 {
		t.Fatalf("grupos = %d, want 1", len(decoded.Grupos))
	}
	g := decoded.Grupos[0]
	if g.Tipo != "Nome similar" || !g.EntreArquivos || g.Similaridade != 0.9 {
		t.Errorf("decoded group = %+v", g)
	}
}
