package schema

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	xerrors "Snowz-Migrator/internal/errors"
)

// TagName 是声明数据库字段的结构体标签。
const TagName = "orm"

// Tabler 由声明了数据表的模型实现，返回空字符串时使用类型名的 snake_case 形式。
type Tabler interface {
	TableName() string
}

var timeType = reflect.TypeOf(time.Time{})

// FromStruct 通过结构体标签构建表模型。
//
//	type Account struct {
//		ID    int64  `orm:"generatedId"`
//		Email string `orm:"unique,width=128,notNull"`
//	}
func FromStruct(model any) (Table, error) {
	tabler, ok := model.(Tabler)
	if !ok {
		return Table{}, xerrors.New(xerrors.CodeTableNotDeclared, fmt.Sprintf("%T does not implement TableName()", model))
	}

	typ := reflect.TypeOf(model)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return Table{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("%T is not a struct", model))
	}

	name := strings.TrimSpace(tabler.TableName())
	if name == "" {
		name = snakeCase(typ.Name())
	}

	table := Table{Name: name}
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		field, err := parseFieldTag(sf, tag)
		if err != nil {
			return Table{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("model %s", typ.Name()))
		}
		table.Fields = append(table.Fields, field)
	}

	if len(table.Fields) == 0 {
		return Table{}, xerrors.New(xerrors.CodeNoFieldDefined, fmt.Sprintf("model %s declares no %q fields", typ.Name(), TagName))
	}
	if err := table.Validate(); err != nil {
		return Table{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid model")
	}
	return table, nil
}

func parseFieldTag(sf reflect.StructField, tag string) (Field, error) {
	field := Field{Name: snakeCase(sf.Name)}
	kind, err := kindOf(sf.Type)
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", sf.Name, err)
	}
	field.Kind = kind

	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "column":
			field.Name = value
		case "id":
			field.ID = true
		case "generatedId":
			field.GeneratedID = true
		case "index":
			field.Index = true
		case "unique":
			field.Unique = true
		case "indexName":
			field.IndexName = value
		case "uniqueIndexName":
			field.UniqueIndexName = value
		case "notNull":
			field.NotNull = true
		case "width":
			width, err := strconv.Atoi(value)
			if err != nil || width <= 0 {
				return Field{}, fmt.Errorf("field %s: invalid width %q", sf.Name, value)
			}
			field.Width = width
		case "type":
			field.Kind = Kind(value)
		default:
			return Field{}, fmt.Errorf("field %s: unknown option %q", sf.Name, key)
		}
	}
	return field, nil
}

func kindOf(t reflect.Type) (Kind, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return KindTime, nil
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, nil
	case reflect.Bool:
		return KindBool, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return KindInt, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return KindLong, nil
	case reflect.Float32:
		return KindFloat, nil
	case reflect.Float64:
		return KindDouble, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBytes, nil
		}
	}
	return "", fmt.Errorf("unsupported type %s", t)
}

// snakeCase 将 Go 风格的标识符转换为 snake_case，连续大写视为一个词。
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type modelFile struct {
	Tables []Table `yaml:"tables"`
}

// LoadModels 从 YAML 文件中读取表模型。
func LoadModels(path string) ([]Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "models path is empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models: %w", err)
	}
	var file modelFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "decode models "+path)
	}
	if len(file.Tables) == 0 {
		return nil, xerrors.New(xerrors.CodeNoFieldDefined, "models file "+path+" declares no tables")
	}
	for i := range file.Tables {
		for j := range file.Tables[i].Fields {
			if file.Tables[i].Fields[j].Kind == "" {
				file.Tables[i].Fields[j].Kind = KindString
			}
		}
		if err := file.Tables[i].Validate(); err != nil {
			if len(file.Tables[i].Fields) == 0 {
				return nil, xerrors.Wrap(xerrors.CodeNoFieldDefined, err, "invalid models file "+path)
			}
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid models file "+path)
		}
	}
	return file.Tables, nil
}
