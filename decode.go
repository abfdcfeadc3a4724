package swiftcsv

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io"
	"iter"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Tuple marks a struct as a positional decode target when embedded:
//
//	type Game struct {
//		swiftcsv.Tuple
//		ID    string
//		Score int
//		Note  *string // trailing pointers may be missing from the record
//	}
//
// Fields are filled left to right. A trailing slice field collects the remaining fields.
type Tuple struct{}

// Unmarshaler is implemented by types that decode themselves from one field.
// The field slice is only valid for the duration of the call.
type Unmarshaler interface {
	UnmarshalCSV(field []byte) error
}

var (
	unmarshalerType     = reflect.TypeFor[Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	tupleType           = reflect.TypeFor[Tuple]()
)

type leafKind int

const (
	leafString leafKind = iota
	leafBytes
	leafInt
	leafUint
	leafFloat
	leafBool
	leafText
	leafCustom
)

// leaf decodes a single field. Pointer leaves are optional: an empty field leaves them nil.
type leaf struct {
	kind     leafKind
	optional bool
	typ      reflect.Type
}

type slot struct {
	index int
	name  string
	leaf  leaf
}

type shape int

const (
	shapeScalar shape = iota
	shapeNamed
	shapeTuple
	shapeArray
	shapeSlice
)

type plan struct {
	shape    shape
	leaf     leaf
	slots    []slot
	required int
	variadic bool
	arity    int
}

var plans sync.Map // reflect.Type -> *plan

// Decode reads the next record and stores it in v, which must be a non-nil pointer to a
// struct, a Tuple struct, an array, a slice or a scalar. Structs without Tuple are named
// targets and need headers. io.EOF signals the end of the stream. A failed decode
// consumes its record and does not stop the reader.
func (r *Reader) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: need a non-nil pointer, got %T", ErrInvalidTarget, v)
	}
	t := rv.Type().Elem()
	p, err := planFor(t)
	if err != nil {
		return err
	}

	rec, err := r.ReadByteRecord()
	if err != nil {
		// The reader's width check yields to targets that declare their own arity range.
		var rerr *RecordError
		if rec.rec == nil || !errors.As(err, &rerr) || !p.flexibleArity() {
			return err
		}
	}

	var cols []int
	if p.shape == shapeNamed {
		if cols, err = r.binding(t, p); err != nil {
			return err
		}
	}
	return p.decode(rec.rec, cols, rv.Elem())
}

// DecodeRecord decodes rec into v. headers are only consulted for named targets.
func DecodeRecord(rec ByteRecord, headers []string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: need a non-nil pointer, got %T", ErrInvalidTarget, v)
	}
	p, err := planFor(rv.Type().Elem())
	if err != nil {
		return err
	}
	buf := rec.live()

	var cols []int
	if p.shape == shapeNamed {
		if headers == nil {
			return &DecodeError{Record: buf.pos.Record, Field: -1, Err: ErrHeadersRequired}
		}
		if cols, err = p.bind(headers, buf.pos.Record); err != nil {
			return err
		}
	}
	return p.decode(buf, cols, rv.Elem())
}

// Decoded iterates over the remaining records decoded as T. Decode errors are yielded
// and iteration continues; it stops at the end of the stream or once the reader failed.
func Decoded[T any](r *Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if _, err := planFor(reflect.TypeFor[T]()); err != nil {
			yield(zero, err)
			return
		}
		for {
			var v T
			err := r.Decode(&v)
			if err == io.EOF {
				return
			}
			if !yield(v, err) || r.Done() {
				return
			}
		}
	}
}

func (r *Reader) binding(t reflect.Type, p *plan) ([]int, error) {
	if r.headers == nil {
		return nil, &DecodeError{Record: r.ordinal, Field: -1, Err: ErrHeadersRequired}
	}
	if cols, ok := r.bindings[t]; ok {
		return cols, nil
	}
	cols, err := p.bind(r.headers, r.ordinal)
	if err != nil {
		return nil, err
	}
	if r.bindings == nil {
		r.bindings = make(map[reflect.Type][]int)
	}
	r.bindings[t] = cols
	return cols, nil
}

// bind resolves each named slot to a column index.
func (p *plan) bind(headers []string, record int) ([]int, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	cols := make([]int, len(p.slots))
	for k, sl := range p.slots {
		col, ok := index[sl.name]
		if !ok {
			return nil, &DecodeError{Record: record, Field: -1, Name: sl.name, Err: ErrUnknownField}
		}
		cols[k] = col
	}
	return cols, nil
}

func planFor(t reflect.Type) (*plan, error) {
	if p, ok := plans.Load(t); ok {
		return p.(*plan), nil
	}
	p, err := buildPlan(t)
	if err != nil {
		return nil, err
	}
	actual, _ := plans.LoadOrStore(t, p)
	return actual.(*plan), nil
}

func buildPlan(t reflect.Type) (*plan, error) {
	if selfDecoding(t) {
		l, err := leafFor(t)
		if err != nil {
			return nil, err
		}
		return &plan{shape: shapeScalar, leaf: l, required: 1}, nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return structPlan(t)
	case reflect.Array:
		l, err := leafFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return &plan{shape: shapeArray, leaf: l, arity: t.Len(), required: t.Len()}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			break
		}
		l, err := leafFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return &plan{shape: shapeSlice, leaf: l, variadic: true}, nil
	}

	l, err := leafFor(t)
	if err != nil {
		return nil, err
	}
	return &plan{shape: shapeScalar, leaf: l, required: 1}, nil
}

func structPlan(t reflect.Type) (*plan, error) {
	p := &plan{shape: shapeNamed}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == tupleType {
			p.shape = shapeTuple
			continue
		}
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("csv"), ",")
		if name == "-" {
			continue
		}
		if f.Anonymous {
			return nil, fmt.Errorf("%w: embedded field %s in %s", ErrInvalidTarget, f.Name, t)
		}
		if name == "" {
			name = f.Name
		}
		p.slots = append(p.slots, slot{index: i, name: name})
	}

	for k := range p.slots {
		f := t.Field(p.slots[k].index)
		ft := f.Type
		last := k == len(p.slots)-1
		if p.shape == shapeTuple && last && ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 && !selfDecoding(ft) {
			p.variadic = true
			ft = ft.Elem()
		}
		l, err := leafFor(ft)
		if err != nil {
			return nil, fmt.Errorf("field %s of %s: %w", f.Name, t, err)
		}
		p.slots[k].leaf = l
	}

	if p.shape == shapeTuple {
		fixed := len(p.slots)
		if p.variadic {
			fixed--
		}
		for k := 0; k < fixed; k++ {
			if !p.slots[k].leaf.optional {
				p.required = k + 1
			}
		}
	}
	return p, nil
}

// flexibleArity reports whether the target accepts records of varying width.
func (p *plan) flexibleArity() bool {
	switch p.shape {
	case shapeSlice:
		return true
	case shapeTuple:
		return p.variadic || p.required < len(p.slots)
	}
	return false
}

func selfDecoding(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return pt.Implements(unmarshalerType) || pt.Implements(textUnmarshalerType)
}

func leafFor(t reflect.Type) (leaf, error) {
	var l leaf
	if t.Kind() == reflect.Pointer {
		l.optional = true
		t = t.Elem()
	}
	l.typ = t

	switch {
	case reflect.PointerTo(t).Implements(unmarshalerType):
		l.kind = leafCustom
		return l, nil
	case reflect.PointerTo(t).Implements(textUnmarshalerType):
		l.kind = leafText
		return l, nil
	}

	switch t.Kind() {
	case reflect.String:
		l.kind = leafString
	case reflect.Slice:
		if t.Elem().Kind() != reflect.Uint8 {
			return l, fmt.Errorf("%w: unsupported type %s", ErrInvalidTarget, t)
		}
		l.kind = leafBytes
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l.kind = leafInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		l.kind = leafUint
	case reflect.Float32, reflect.Float64:
		l.kind = leafFloat
	case reflect.Bool:
		l.kind = leafBool
	default:
		return l, fmt.Errorf("%w: unsupported type %s", ErrInvalidTarget, t)
	}
	return l, nil
}

func (p *plan) decode(rec *recordBuf, cols []int, rv reflect.Value) error {
	n := len(rec.spans)
	switch p.shape {
	case shapeScalar:
		if n != 1 {
			return countError(rec, n, "1")
		}
		return decodeField(rec, 0, "", p.leaf, rv)

	case shapeArray:
		if n != p.arity {
			return countError(rec, n, strconv.Itoa(p.arity))
		}
		for i := 0; i < n; i++ {
			if err := decodeField(rec, i, "", p.leaf, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case shapeSlice:
		fillSlice(rv, n)
		for i := 0; i < n; i++ {
			if err := decodeField(rec, i, "", p.leaf, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case shapeTuple:
		fixed := len(p.slots)
		if p.variadic {
			fixed--
		}
		if n < p.required || (!p.variadic && n > fixed) {
			want := strconv.Itoa(fixed)
			switch {
			case p.variadic:
				want = fmt.Sprintf("at least %d", p.required)
			case p.required < fixed:
				want = fmt.Sprintf("%d to %d", p.required, fixed)
			}
			return countError(rec, n, want)
		}
		for i, sl := range p.slots[:fixed] {
			fv := rv.Field(sl.index)
			if i >= n {
				fv.SetZero()
				continue
			}
			if err := decodeField(rec, i, "", sl.leaf, fv); err != nil {
				return err
			}
		}
		if p.variadic {
			sl := p.slots[fixed]
			rest := max(n-fixed, 0)
			sv := rv.Field(sl.index)
			fillSlice(sv, rest)
			for j := 0; j < rest; j++ {
				if err := decodeField(rec, fixed+j, "", sl.leaf, sv.Index(j)); err != nil {
					return err
				}
			}
		}
		return nil

	case shapeNamed:
		for k, sl := range p.slots {
			col := cols[k]
			if col >= n {
				return &DecodeError{
					Record: rec.pos.Record,
					Field:  col,
					Name:   sl.name,
					Err:    fmt.Errorf("%w: got %d, want at least %d", ErrFieldCount, n, col+1),
				}
			}
			if err := decodeField(rec, col, sl.name, sl.leaf, rv.Field(sl.index)); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown shape", ErrInvalidTarget)
}

func fillSlice(sv reflect.Value, n int) {
	if sv.Cap() >= n {
		sv.SetLen(n)
		return
	}
	sv.Set(reflect.MakeSlice(sv.Type(), n, n))
}

func countError(rec *recordBuf, got int, want string) error {
	return &DecodeError{
		Record: rec.pos.Record,
		Field:  -1,
		Err:    fmt.Errorf("%w: got %d, want %s", ErrFieldCount, got, want),
	}
}

func decodeField(rec *recordBuf, i int, name string, l leaf, fv reflect.Value) error {
	if err := l.set(rec.field(i), fv); err != nil {
		return &DecodeError{Record: rec.pos.Record, Field: i, Name: name, Err: err}
	}
	return nil
}

func (l leaf) set(field []byte, fv reflect.Value) error {
	if l.optional {
		if len(field) == 0 {
			fv.SetZero()
			return nil
		}
		if fv.IsNil() {
			fv.Set(reflect.New(l.typ))
		}
		fv = fv.Elem()
	}

	switch l.kind {
	case leafCustom:
		if err := fv.Addr().Interface().(Unmarshaler).UnmarshalCSV(field); err != nil {
			return l.valueError(field, err)
		}
	case leafText:
		if err := fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText(bytes.Clone(field)); err != nil {
			return l.valueError(field, err)
		}
	case leafString:
		if !utf8.Valid(field) {
			return ErrInvalidUTF8
		}
		fv.SetString(string(field))
	case leafBytes:
		fv.SetBytes(bytes.Clone(field))
	case leafInt:
		n, err := strconv.ParseInt(bytesToString(field), 10, l.typ.Bits())
		if err != nil {
			return l.valueError(field, err)
		}
		fv.SetInt(n)
	case leafUint:
		n, err := strconv.ParseUint(bytesToString(field), 10, l.typ.Bits())
		if err != nil {
			return l.valueError(field, err)
		}
		fv.SetUint(n)
	case leafFloat:
		if !decimalFloat(field) {
			return l.valueError(field, strconv.ErrSyntax)
		}
		f, err := strconv.ParseFloat(bytesToString(field), l.typ.Bits())
		if err != nil {
			return l.valueError(field, err)
		}
		fv.SetFloat(f)
	case leafBool:
		b, err := parseBool(field)
		if err != nil {
			return l.valueError(field, err)
		}
		fv.SetBool(b)
	}
	return nil
}

func (l leaf) valueError(field []byte, err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		err = ne.Err
	}
	return &ValueError{Raw: string(field), Kind: l.typ.String(), Err: err}
}

// decimalFloat reports whether field only uses the bytes of a base-10 literal,
// which rules out hex floats, underscores and the inf and nan spellings.
func decimalFloat(field []byte) bool {
	for _, b := range field {
		switch {
		case b >= '0' && b <= '9':
		case b == '.', b == 'e', b == 'E', b == '+', b == '-':
		default:
			return false
		}
	}
	return true
}

// parseBool accepts true/false and 1/0, ignoring case.
func parseBool(field []byte) (bool, error) {
	s := bytesToString(field)
	switch {
	case s == "1" || strings.EqualFold(s, "true"):
		return true, nil
	case s == "0" || strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, strconv.ErrSyntax
}
