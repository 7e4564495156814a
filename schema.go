package fel

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// Schema names published by SAT for the FEL regime.
const (
	SchemaDocumento = "GT_Documento-0.1.0.xsd"
	SchemaAnulacion = "GT_AnulacionDocumento-0.1.0.xsd"
)

// SchemaFor returns the XSD file name validating the given payload kind.
func SchemaFor(anulacion bool) string {
	if anulacion {
		return SchemaAnulacion
	}
	return SchemaDocumento
}

// Schema is a compiled XSD restricted to the subset the SAT schemas use:
// global elements, complex types with sequences, attributes, and simple-type
// restrictions (enumerations, patterns, length and digit facets over the
// decimal, integer, dateTime, date and string bases).
type Schema struct {
	name     string
	elements map[string]*xsdElement // global declarations by local name
	types    map[string]*xsdType
}

type xsdElement struct {
	name      string
	typeName  string
	inline    *xsdType
	minOccurs int
	maxOccurs int // -1 is unbounded
}

type xsdType struct {
	children   []*xsdElement
	choice     bool // children form a choice instead of a sequence
	attributes []xsdAttribute
	simple     *xsdRestriction // non-nil when the type constrains text content
}

type xsdAttribute struct {
	name     string
	required bool
	simple   *xsdRestriction
}

type xsdRestriction struct {
	base           string
	enums          []string
	pattern        *regexp.Regexp
	maxLength      int // 0 means unset
	minLength      int
	totalDigits    int
	fractionDigits int // -1 means unset
}

func local(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// CompileSchema parses XSD bytes into a Schema. Constructs outside the
// supported subset are ignored rather than rejected, so a schema revision
// adding facets degrades to fewer checks, not a failure.
func CompileSchema(name string, data []byte) (*Schema, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("fel: parsing schema %s: %w", name, err)
	}
	root := tree.Root()
	if root == nil || local(root.Tag) != "schema" {
		return nil, fmt.Errorf("fel: %s is not an XML schema", name)
	}

	s := &Schema{
		name:     name,
		elements: make(map[string]*xsdElement),
		types:    make(map[string]*xsdType),
	}
	for _, child := range root.ChildElements() {
		switch local(child.Tag) {
		case "element":
			el := compileElement(child)
			s.elements[el.name] = el
		case "complexType":
			if n := child.SelectAttrValue("name", ""); n != "" {
				s.types[n] = compileComplexType(child)
			}
		case "simpleType":
			if n := child.SelectAttrValue("name", ""); n != "" {
				s.types[n] = &xsdType{simple: compileRestriction(child)}
			}
		}
	}
	return s, nil
}

func occurs(el *etree.Element, attr string, def int) int {
	v := el.SelectAttrValue(attr, "")
	if v == "" {
		return def
	}
	if v == "unbounded" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func compileElement(el *etree.Element) *xsdElement {
	out := &xsdElement{
		name:      local(el.SelectAttrValue("name", "")),
		typeName:  local(el.SelectAttrValue("type", "")),
		minOccurs: occurs(el, "minOccurs", 1),
		maxOccurs: occurs(el, "maxOccurs", 1),
	}
	if ct := findChild(el, "complexType"); ct != nil {
		out.inline = compileComplexType(ct)
	} else if st := findChild(el, "simpleType"); st != nil {
		out.inline = &xsdType{simple: compileRestriction(st)}
	}
	return out
}

func compileComplexType(el *etree.Element) *xsdType {
	t := &xsdType{}
	for _, child := range el.ChildElements() {
		switch local(child.Tag) {
		case "sequence", "all":
			for _, item := range child.ChildElements() {
				if local(item.Tag) == "element" {
					t.children = append(t.children, compileElement(item))
				}
			}
		case "choice":
			t.choice = true
			for _, item := range child.ChildElements() {
				if local(item.Tag) == "element" {
					t.children = append(t.children, compileElement(item))
				}
			}
		case "attribute":
			t.attributes = append(t.attributes, compileAttribute(child))
		case "simpleContent":
			if ext := findChild(child, "extension"); ext != nil {
				t.simple = &xsdRestriction{base: local(ext.SelectAttrValue("base", "")), fractionDigits: -1}
				for _, a := range ext.ChildElements() {
					if local(a.Tag) == "attribute" {
						t.attributes = append(t.attributes, compileAttribute(a))
					}
				}
			}
		}
	}
	return t
}

func compileAttribute(el *etree.Element) xsdAttribute {
	a := xsdAttribute{
		name:     el.SelectAttrValue("name", ""),
		required: el.SelectAttrValue("use", "") == "required",
	}
	if st := findChild(el, "simpleType"); st != nil {
		a.simple = compileRestriction(st)
	} else if t := local(el.SelectAttrValue("type", "")); t != "" {
		a.simple = &xsdRestriction{base: t, fractionDigits: -1}
	}
	return a
}

func compileRestriction(el *etree.Element) *xsdRestriction {
	r := &xsdRestriction{fractionDigits: -1}
	res := findChild(el, "restriction")
	if res == nil {
		return r
	}
	r.base = local(res.SelectAttrValue("base", ""))
	for _, facet := range res.ChildElements() {
		v := facet.SelectAttrValue("value", "")
		switch local(facet.Tag) {
		case "enumeration":
			r.enums = append(r.enums, v)
		case "pattern":
			if re, err := regexp.Compile("^(?:" + v + ")$"); err == nil {
				r.pattern = re
			}
		case "maxLength":
			r.maxLength, _ = strconv.Atoi(v)
		case "minLength":
			r.minLength, _ = strconv.Atoi(v)
		case "totalDigits":
			r.totalDigits, _ = strconv.Atoi(v)
		case "fractionDigits":
			r.fractionDigits, _ = strconv.Atoi(v)
		}
	}
	return r
}

func findChild(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if local(c.Tag) == tag {
			return c
		}
	}
	return nil
}

// Validate checks the document against the schema and returns one ERR_001
// finding per violation, each carrying the XPath of the offending element.
// An empty slice means the document conforms to the checked subset.
func (s *Schema) Validate(doc *etree.Document) []Finding {
	root := doc.Root()
	if root == nil {
		return []Finding{schemaFinding("/", "el documento no tiene elemento raíz")}
	}
	decl, ok := s.elements[local(root.Tag)]
	if !ok {
		return []Finding{schemaFinding("/"+local(root.Tag),
			fmt.Sprintf("elemento raíz %q no declarado en %s", local(root.Tag), s.name))}
	}
	var findings []Finding
	s.validateElement(root, decl, "/"+local(root.Tag), &findings)
	return findings
}

var builtinBases = map[string]bool{
	"string": true, "decimal": true, "int": true, "integer": true,
	"positiveInteger": true, "nonNegativeInteger": true,
	"dateTime": true, "date": true, "boolean": true,
}

func (s *Schema) resolve(el *xsdElement) *xsdType {
	if el.inline != nil {
		return el.inline
	}
	if el.typeName == "" {
		return nil
	}
	if t, ok := s.types[el.typeName]; ok {
		return t
	}
	if builtinBases[el.typeName] {
		return &xsdType{simple: &xsdRestriction{base: el.typeName, fractionDigits: -1}}
	}
	return nil
}

func (s *Schema) validateElement(el *etree.Element, decl *xsdElement, path string, out *[]Finding) {
	t := s.resolve(decl)
	if t == nil {
		return // built-in or unknown type, nothing to check structurally
	}

	for _, attr := range t.attributes {
		v := el.SelectAttr(attr.name)
		if v == nil {
			if attr.required {
				*out = append(*out, schemaFinding(path,
					fmt.Sprintf("falta el atributo requerido %q", attr.name)))
			}
			continue
		}
		if attr.simple != nil {
			s.checkSimple(v.Value, attr.simple, path+"/@"+attr.name, out)
		}
	}

	if t.simple != nil {
		s.checkSimple(strings.TrimSpace(el.Text()), t.simple, path, out)
	}

	if len(t.children) == 0 {
		return
	}
	declared := make(map[string]*xsdElement, len(t.children))
	for _, c := range t.children {
		declared[c.name] = c
	}

	counts := make(map[string]int)
	index := make(map[string]int)
	for _, child := range el.ChildElements() {
		name := local(child.Tag)
		index[name]++
		childDecl, ok := declared[name]
		if !ok {
			*out = append(*out, schemaFinding(path+"/"+name,
				fmt.Sprintf("elemento %q no permitido en %s", name, local(el.Tag))))
			continue
		}
		counts[name]++
		childPath := path + "/" + name
		if index[name] > 1 {
			childPath = fmt.Sprintf("%s[%d]", childPath, index[name])
		}
		s.validateElement(child, childDecl, childPath, out)
	}

	if t.choice {
		present := 0
		for _, c := range t.children {
			if counts[c.name] > 0 {
				present++
			}
		}
		if present == 0 {
			*out = append(*out, schemaFinding(path, "falta un elemento requerido de la alternativa"))
		}
		return
	}
	for _, c := range t.children {
		n := counts[c.name]
		if n < c.minOccurs {
			*out = append(*out, schemaFinding(path+"/"+c.name,
				fmt.Sprintf("elemento %q requerido (mínimo %d, presente %d)", c.name, c.minOccurs, n)))
		}
		if c.maxOccurs >= 0 && n > c.maxOccurs {
			*out = append(*out, schemaFinding(path+"/"+c.name,
				fmt.Sprintf("elemento %q excede el máximo permitido (%d)", c.name, c.maxOccurs)))
		}
	}
}

func (s *Schema) checkSimple(value string, r *xsdRestriction, path string, out *[]Finding) {
	// Named simple types referenced by base resolve one level deep.
	if r.base != "" {
		if named, ok := s.types[r.base]; ok && named.simple != nil {
			s.checkSimple(value, named.simple, path, out)
		}
	}
	switch r.base {
	case "decimal":
		if value != "" {
			if _, err := decimal.NewFromString(value); err != nil {
				*out = append(*out, schemaFinding(path, fmt.Sprintf("valor decimal inválido %q", value)))
				return
			}
		}
	case "int", "integer", "positiveInteger", "nonNegativeInteger":
		if value != "" {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				*out = append(*out, schemaFinding(path, fmt.Sprintf("valor entero inválido %q", value)))
				return
			}
		}
	case "dateTime", "date":
		if value != "" {
			if _, ok := parseDatetime(value); !ok {
				*out = append(*out, schemaFinding(path, fmt.Sprintf("fecha inválida %q", value)))
				return
			}
		}
	}
	if len(r.enums) > 0 {
		found := false
		for _, e := range r.enums {
			if e == value {
				found = true
				break
			}
		}
		if !found {
			*out = append(*out, schemaFinding(path, fmt.Sprintf("valor %q fuera de la enumeración", value)))
		}
	}
	if r.pattern != nil && !r.pattern.MatchString(value) {
		*out = append(*out, schemaFinding(path, fmt.Sprintf("valor %q no cumple el patrón", value)))
	}
	if r.maxLength > 0 && len([]rune(value)) > r.maxLength {
		*out = append(*out, schemaFinding(path, fmt.Sprintf("longitud %d excede el máximo %d", len([]rune(value)), r.maxLength)))
	}
	if r.minLength > 0 && len([]rune(value)) < r.minLength {
		*out = append(*out, schemaFinding(path, fmt.Sprintf("longitud %d menor al mínimo %d", len([]rune(value)), r.minLength)))
	}
	if r.fractionDigits >= 0 && value != "" {
		if i := strings.IndexByte(value, '.'); i >= 0 && len(value)-i-1 > r.fractionDigits {
			*out = append(*out, schemaFinding(path, fmt.Sprintf("más de %d decimales en %q", r.fractionDigits, value)))
		}
	}
}

func schemaFinding(path, msg string) Finding {
	return Finding{
		Code:     CodeSchemaValidation,
		Message:  Message(CodeSchemaValidation) + ": " + msg,
		Severity: Reject,
		Category: GeneralPart1,
		XPath:    path,
		SATLevel: LevelCertificador,
	}
}

// SchemaSet memoizes compiled schemas over a SchemaCache. Compilation
// happens once per content hash; a refreshed blob recompiles.
type SchemaSet struct {
	cache *SchemaCache
	log   *slog.Logger

	mu       sync.Mutex
	compiled map[string]*compiledEntry
}

type compiledEntry struct {
	hash   string
	schema *Schema
}

// NewSchemaSet builds a schema set over the cache.
func NewSchemaSet(cache *SchemaCache, log *slog.Logger) *SchemaSet {
	if log == nil {
		log = slog.Default()
	}
	return &SchemaSet{cache: cache, log: log, compiled: make(map[string]*compiledEntry)}
}

// Load returns the compiled schema for name, fetching and compiling as
// needed. stale mirrors the cache freshness of the served bytes.
func (ss *SchemaSet) Load(ctx context.Context, name string) (*Schema, bool, error) {
	start := time.Now()
	data, stale, err := ss.cache.Get(ctx, name)
	if err != nil {
		return nil, false, err
	}
	h := hashBytes(data)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if e, ok := ss.compiled[name]; ok && e.hash == h {
		return e.schema, stale, nil
	}
	schema, err := CompileSchema(name, data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}
	ss.compiled[name] = &compiledEntry{hash: h, schema: schema}
	ss.log.Debug("schema compiled", "schema", name, "elapsed", time.Since(start))
	return schema, stale, nil
}
