// Package fieldcodec сериализует поля документа в JSON для хранилищ без собственного типа даты.
//
// Время хранится строкой фиксированной ширины в UTC, поэтому лексикографическое
// сравнение строк совпадает с хронологическим. Строка такого формата при чтении
// снова становится time.Time.
package fieldcodec

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimeLayout - формат хранения времени
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// EncodeValue приводит значение к виду, в котором оно хранится
func EncodeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(TimeLayout)
	}
	return v
}

// Encode сериализует поля документа
func Encode(fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = EncodeValue(v)
	}
	return json.Marshal(out)
}

// Decode восстанавливает поля документа
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = DecodeValue(v)
	}
	return out, nil
}

// DecodeValue восстанавливает одно значение
func DecodeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case string:
		if len(x) == len(TimeLayout) {
			if t, err := time.Parse(TimeLayout, x); err == nil {
				return t
			}
		}
		return x
	}
	return v
}
