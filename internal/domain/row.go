package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind identifica la variante escalar contenida en un Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value es un escalar de tipo dinamico: null, bool, entero, flotante, texto o timestamp.
// El valor cero es null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
}

func NullValue() Value { return Value{} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// Interface devuelve el valor Go nativo (nil para null).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindTime:
		return v.t
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return v.s
	}
}

// Equal compara tipo y contenido; los timestamps se comparan como instantes.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	}
	return false
}

// MarshalJSON emite el valor como JSON natural; los timestamps van en RFC3339.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.f)
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	default:
		return json.Marshal(v.Interface())
	}
}

// FromNative convierte un valor devuelto por un driver SQL al modelo de Value.
// Los tipos fuera del conjunto cerrado se degradan a texto.
func FromNative(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int8:
		return IntValue(int64(t))
	case int16:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint8:
		return IntValue(int64(t))
	case uint16:
		return IntValue(int64(t))
	case uint32:
		return IntValue(int64(t))
	case uint:
		return fromUint(uint64(t))
	case uint64:
		return fromUint(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []byte:
		return StringValue(string(t))
	case [16]byte:
		return StringValue(uuid.UUID(t).String())
	case time.Time:
		return TimeValue(t)
	case *time.Time:
		if t == nil {
			return NullValue()
		}
		return TimeValue(*t)
	case driver.Valuer:
		inner, err := t.Value()
		if err != nil {
			return StringValue(fmt.Sprint(x))
		}
		if _, again := inner.(driver.Valuer); again {
			return StringValue(fmt.Sprint(inner))
		}
		return FromNative(inner)
	case fmt.Stringer:
		return StringValue(t.String())
	default:
		return StringValue(fmt.Sprint(x))
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return FloatValue(float64(u))
	}
	return IntValue(int64(u))
}

// Row es un registro sin esquema: nombre de columna -> valor. El orden de claves no importa.
type Row map[string]Value

// Columns devuelve los nombres de columna ordenados alfabeticamente.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
