package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KilimcininKorOglu/obastore/internal/password"
)

// schemaFile is the YAML layout of a schema file.
type schemaFile struct {
	Namespaces []namespaceFile  `yaml:"namespaces"`
	Types      []objectTypeFile `yaml:"types"`
}

type namespaceFile struct {
	Name            string `yaml:"name"`
	CaseInsensitive bool   `yaml:"caseInsensitive"`
}

type objectTypeFile struct {
	ID       uint16      `yaml:"id"`
	Name     string      `yaml:"name"`
	Desc     string      `yaml:"description"`
	Embedded bool        `yaml:"embedded"`
	Label    string      `yaml:"label"`
	Fields   []fieldFile `yaml:"fields"`
}

type fieldFile struct {
	Code      uint16 `yaml:"code"`
	Name      string `yaml:"name"`
	Desc      string `yaml:"description"`
	Kind      string `yaml:"kind"`
	Vector    bool   `yaml:"vector"`
	MaxSize   int    `yaml:"maxSize"`
	ReadOnly  bool   `yaml:"readOnly"`
	Namespace string `yaml:"namespace"`

	MinLength int    `yaml:"minLength"`
	MaxLength int    `yaml:"maxLength"`
	OKChars   string `yaml:"okChars"`
	BadChars  string `yaml:"badChars"`
	Syntax    string `yaml:"syntax"`

	Min      *int64   `yaml:"min"`
	Max      *int64   `yaml:"max"`
	FloatMin *float64 `yaml:"floatMin"`
	FloatMax *float64 `yaml:"floatMax"`

	AllowIPv6 bool `yaml:"allowIPv6"`

	Target      string `yaml:"target"`
	Mirror      string `yaml:"mirror"`
	EditInPlace bool   `yaml:"editInPlace"`

	Formats        []string         `yaml:"formats"`
	Accept         []string         `yaml:"accept"`
	StorePlaintext bool             `yaml:"storePlaintext"`
	HistorySize    int              `yaml:"historySize"`
	Policy         *password.Policy `yaml:"policy"`
}

// LoadSchema loads a schema from a YAML file at the given path.
func LoadSchema(path string) (*Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSchemaFileMissing
		}
		return nil, err
	}
	defer file.Close()

	return LoadSchemaFromYAML(file)
}

// LoadSchemaFromYAML parses a schema, resolves names and validates it.
//
// Example:
//
//	namespaces:
//	  - name: usernames
//	    caseInsensitive: true
//	types:
//	  - id: 1
//	    name: user
//	    label: username
//	    fields:
//	      - {code: 100, name: username, kind: string, namespace: usernames}
//	      - {code: 101, name: groups, kind: invid, vector: true, target: group, mirror: members}
func LoadSchemaFromYAML(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc schemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("schema: parsing yaml: %w", err)
	}

	s := NewSchema()

	for _, ns := range doc.Namespaces {
		if ns.Name == "" {
			return nil, fmt.Errorf("%w: namespace without a name", ErrInconsistent)
		}
		s.AddNamespace(&NamespaceDef{Name: ns.Name, CaseInsensitive: ns.CaseInsensitive})
	}

	for _, tf := range doc.Types {
		ot := NewObjectType(tf.ID, tf.Name, tf.Embedded)
		ot.Desc = tf.Desc
		ot.Label = tf.Label

		for _, ff := range tf.Fields {
			fd, err := ff.toFieldDef()
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", tf.Name, ff.Name, err)
			}
			if err := ot.AddField(fd); err != nil {
				return nil, err
			}
		}

		if err := s.AddObjectType(ot); err != nil {
			return nil, err
		}
	}

	if err := s.Resolve(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (ff *fieldFile) toFieldDef() (*FieldDef, error) {
	kind, err := ParseFieldKind(ff.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w %q", err, ff.Kind)
	}

	fd := NewFieldDef(ff.Code, ff.Name, kind)
	fd.Desc = ff.Desc
	fd.Vector = ff.Vector
	fd.MaxSize = ff.MaxSize
	fd.ReadOnly = ff.ReadOnly
	fd.Namespace = ff.Namespace
	fd.MinLength = ff.MinLength
	fd.MaxLength = ff.MaxLength
	fd.OKChars = ff.OKChars
	fd.BadChars = ff.BadChars
	fd.Syntax = ff.Syntax
	fd.Min = ff.Min
	fd.Max = ff.Max
	fd.FloatMin = ff.FloatMin
	fd.FloatMax = ff.FloatMax
	fd.AllowIPv6 = ff.AllowIPv6
	fd.EditInPlace = ff.EditInPlace
	fd.targetName = ff.Target
	fd.mirrorName = ff.Mirror

	if kind == KindPassword {
		opts := &PasswordOptions{
			StorePlaintext: ff.StorePlaintext,
			HistorySize:    ff.HistorySize,
			Policy:         ff.Policy,
		}
		for _, name := range ff.Formats {
			f, err := password.ParseFormat(name)
			if err != nil {
				return nil, fmt.Errorf("%w %q", err, name)
			}
			opts.Formats = append(opts.Formats, f)
		}
		for _, name := range ff.Accept {
			f, err := password.ParseFormat(name)
			if err != nil {
				return nil, fmt.Errorf("%w %q", err, name)
			}
			opts.Accept = append(opts.Accept, f)
		}
		fd.Password = opts
	}

	return fd, nil
}
