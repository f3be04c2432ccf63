package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	xerrors "Snowz-Migrator/internal/errors"
)

type account struct {
	ID        int64     `orm:"generatedId"`
	Email     string    `orm:"unique,width=128,notNull"`
	TenantID  int32     `orm:"index,uniqueIndexName=account_tenant_handle_uq"`
	Handle    string    `orm:"column=nick,uniqueIndexName=account_tenant_handle_uq"`
	CreatedAt time.Time `orm:""`
	Avatar    []byte    `orm:"type=bytes"`
	Score     *float64  `orm:"indexName=account_score_idx"`
	Ignored   string
	Skipped   string `orm:"-"`
}

func (account) TableName() string { return "" }

type namedAccount struct {
	ID int64 `orm:"id"`
}

func (namedAccount) TableName() string { return "accounts" }

type undeclared struct {
	ID int64 `orm:"id"`
}

type fieldless struct {
	Name string
}

func (fieldless) TableName() string { return "fieldless" }

type badOption struct {
	ID int64 `orm:"primary"`
}

func (badOption) TableName() string { return "bad_option" }

func TestFromStruct(t *testing.T) {
	t.Parallel()

	table, err := FromStruct(&account{})
	if err != nil {
		t.Fatalf("FromStruct failed: %v", err)
	}
	if table.Name != "account" {
		t.Fatalf("unexpected table name: %s", table.Name)
	}
	want := []Field{
		{Name: "id", Kind: KindLong, GeneratedID: true},
		{Name: "email", Kind: KindString, Unique: true, Width: 128, NotNull: true},
		{Name: "tenant_id", Kind: KindInt, Index: true, UniqueIndexName: "account_tenant_handle_uq"},
		{Name: "nick", Kind: KindString, UniqueIndexName: "account_tenant_handle_uq"},
		{Name: "created_at", Kind: KindTime},
		{Name: "avatar", Kind: KindBytes},
		{Name: "score", Kind: KindDouble, IndexName: "account_score_idx"},
	}
	if len(table.Fields) != len(want) {
		t.Fatalf("unexpected fields: %+v", table.Fields)
	}
	for i := range want {
		if table.Fields[i] != want[i] {
			t.Fatalf("field %d: got %+v want %+v", i, table.Fields[i], want[i])
		}
	}

	named, err := FromStruct(namedAccount{})
	if err != nil || named.Name != "accounts" {
		t.Fatalf("expected declared table name, got %q (%v)", named.Name, err)
	}
}

func TestFromStructErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model any
		code  xerrors.Code
	}{
		{undeclared{}, xerrors.CodeTableNotDeclared},
		{fieldless{}, xerrors.CodeNoFieldDefined},
		{badOption{}, xerrors.CodeInvalidArgument},
	}
	for _, tc := range cases {
		if _, err := FromStruct(tc.model); xerrors.CodeOf(err) != tc.code {
			t.Fatalf("%T: expected %s, got %v", tc.model, tc.code, err)
		}
	}
}

func TestSnakeCase(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ID":           "id",
		"UserID":       "user_id",
		"HTTPServer":   "http_server",
		"CreatedAt":    "created_at",
		"Address2Line": "address2_line",
		"name":         "name",
	}
	for input, want := range cases {
		if got := snakeCase(input); got != want {
			t.Fatalf("snakeCase(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLoadModels(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	content := `tables:
  - name: account
    fields:
      - name: id
        type: long
        generatedId: true
      - name: email
        unique: true
        width: 128
  - name: audit_event
    fields:
      - name: id
        type: long
        id: true
      - name: payload
        type: bytes
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write models: %v", err)
	}

	tables, err := LoadModels(path)
	if err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	if len(tables) != 2 || tables[0].Name != "account" || tables[1].Name != "audit_event" {
		t.Fatalf("unexpected tables: %+v", tables)
	}
	if tables[0].Fields[1].Kind != KindString || tables[0].Fields[1].Width != 128 || !tables[0].Fields[1].Unique {
		t.Fatalf("email field not decoded: %+v", tables[0].Fields[1])
	}
}

func TestLoadModelsRejectsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("tables: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadModels(empty); xerrors.CodeOf(err) != xerrors.CodeNoFieldDefined {
		t.Fatalf("expected NO_FIELD_DEFINED, got %v", err)
	}

	noFields := filepath.Join(dir, "nofields.yaml")
	if err := os.WriteFile(noFields, []byte("tables:\n  - name: account\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadModels(noFields); xerrors.CodeOf(err) != xerrors.CodeNoFieldDefined {
		t.Fatalf("expected NO_FIELD_DEFINED, got %v", err)
	}

	if _, err := LoadModels(""); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}
