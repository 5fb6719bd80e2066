// Package wire defines the Connect procedures of the lifeboard backend and
// the structpb layout of their messages. Rows are dynamic, so every request
// and response is a google.protobuf.Struct.
package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
)

const (
	DataServiceName = "lifeboard.v1.DataService"
	AuthServiceName = "lifeboard.v1.AuthService"
	RoleServiceName = "lifeboard.v1.RoleService"
)

const (
	SelectProcedure = "/" + DataServiceName + "/Select"
	InsertProcedure = "/" + DataServiceName + "/Insert"
	UpdateProcedure = "/" + DataServiceName + "/Update"
	DeleteProcedure = "/" + DataServiceName + "/Delete"
	UpsertProcedure = "/" + DataServiceName + "/Upsert"

	SignUpProcedure     = "/" + AuthServiceName + "/SignUp"
	SignInProcedure     = "/" + AuthServiceName + "/SignIn"
	SignOutProcedure    = "/" + AuthServiceName + "/SignOut"
	GetSessionProcedure = "/" + AuthServiceName + "/GetSession"

	ListRolesProcedure = "/" + RoleServiceName + "/ListRoles"
)

// Message field names.
const (
	FieldTable      = "table"
	FieldFilters    = "filters"
	FieldOrder      = "order"
	FieldLimit      = "limit"
	FieldOffset     = "offset"
	FieldRow        = "row"
	FieldRows       = "rows"
	FieldValues     = "values"
	FieldConflict   = "conflict"
	FieldCount      = "count"
	FieldSession    = "session"
	FieldRoles      = "roles"
	FieldUserID     = "user_id"
	FieldEmail      = "email"
	FieldName       = "display_name"
	FieldPassword   = "password"
	FieldAdminCode  = "admin_code"
	FieldToken      = "access_token"
	FieldExpiresAt  = "expires_at"
	fieldColumn     = "column"
	fieldOp         = "op"
	fieldValue      = "value"
	fieldDescending = "descending"
)

// Value converts a row value into a structpb value. Times travel as
// RFC 3339 strings and other Stringers (decimals) as their text.
func Value(v any) (*structpb.Value, error) {
	switch x := v.(type) {
	case time.Time:
		return structpb.NewStringValue(x.UTC().Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return structpb.NewStringValue(x.String()), nil
	case []any:
		list := make([]*structpb.Value, len(x))
		for i, item := range x {
			pv, err := Value(item)
			if err != nil {
				return nil, err
			}
			list[i] = pv
		}
		return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
	case backend.Row:
		s, err := EncodeRow(x)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(s), nil
	}
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, apperr.Validation("unsupported value %v (%T)", v, v)
	}
	return pv, nil
}

// EncodeRow converts a row into a Struct.
func EncodeRow(row backend.Row) (*structpb.Struct, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(row))}
	for k, v := range row {
		pv, err := Value(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		s.Fields[k] = pv
	}
	return s, nil
}

// DecodeRow converts a Struct into a row. Numbers decode as float64.
func DecodeRow(s *structpb.Struct) backend.Row {
	row := backend.Row{}
	if s == nil {
		return row
	}
	for k, v := range s.GetFields() {
		row[k] = v.AsInterface()
	}
	return row
}

// EncodeRows converts rows into a list value.
func EncodeRows(rows []backend.Row) (*structpb.Value, error) {
	list := make([]*structpb.Value, len(rows))
	for i, row := range rows {
		s, err := EncodeRow(row)
		if err != nil {
			return nil, err
		}
		list[i] = structpb.NewStructValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
}

// DecodeRows converts a list value into rows. Non-object items are rejected.
func DecodeRows(v *structpb.Value) ([]backend.Row, error) {
	items := v.GetListValue().GetValues()
	rows := make([]backend.Row, 0, len(items))
	for _, item := range items {
		s := item.GetStructValue()
		if s == nil {
			return nil, apperr.Validation("rows must be objects")
		}
		rows = append(rows, DecodeRow(s))
	}
	return rows, nil
}

// EncodeFilters converts filters into a list value.
func EncodeFilters(filters []backend.Filter) (*structpb.Value, error) {
	list := make([]*structpb.Value, 0, len(filters))
	for _, f := range filters {
		value, err := Value(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Column, err)
		}
		list = append(list, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldColumn: structpb.NewStringValue(f.Column),
			fieldOp:     structpb.NewStringValue(string(f.Op)),
			fieldValue:  value,
		}}))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
}

// DecodeFilters converts a list value into filters.
func DecodeFilters(v *structpb.Value) ([]backend.Filter, error) {
	items := v.GetListValue().GetValues()
	filters := make([]backend.Filter, 0, len(items))
	for _, item := range items {
		fields := item.GetStructValue().GetFields()
		column := fields[fieldColumn].GetStringValue()
		op := fields[fieldOp].GetStringValue()
		if column == "" || op == "" {
			return nil, apperr.Validation("filters need a column and an operator")
		}
		var value any
		if fv, ok := fields[fieldValue]; ok {
			value = fv.AsInterface()
		}
		filters = append(filters, backend.Filter{Column: column, Op: backend.Op(op), Value: value})
	}
	return filters, nil
}

// EncodeQuery converts a select query into a request message.
func EncodeQuery(q backend.Query) (*structpb.Struct, error) {
	filters, err := EncodeFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	order := make([]*structpb.Value, len(q.Order))
	for i, o := range q.Order {
		order[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldColumn:     structpb.NewStringValue(o.Column),
			fieldDescending: structpb.NewBoolValue(o.Descending),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTable:   structpb.NewStringValue(q.Table),
		FieldFilters: filters,
		FieldOrder:   structpb.NewListValue(&structpb.ListValue{Values: order}),
		FieldLimit:   structpb.NewNumberValue(float64(q.Limit)),
		FieldOffset:  structpb.NewNumberValue(float64(q.Offset)),
	}}, nil
}

// DecodeQuery converts a request message into a select query.
func DecodeQuery(s *structpb.Struct) (backend.Query, error) {
	fields := s.GetFields()
	filters, err := DecodeFilters(fields[FieldFilters])
	if err != nil {
		return backend.Query{}, err
	}
	q := backend.Query{
		Table:   fields[FieldTable].GetStringValue(),
		Filters: filters,
		Limit:   int(fields[FieldLimit].GetNumberValue()),
		Offset:  int(fields[FieldOffset].GetNumberValue()),
	}
	for _, item := range fields[FieldOrder].GetListValue().GetValues() {
		of := item.GetStructValue().GetFields()
		q.Order = append(q.Order, backend.Order{
			Column:     of[fieldColumn].GetStringValue(),
			Descending: of[fieldDescending].GetBoolValue(),
		})
	}
	return q, nil
}

// Strings converts a list value of strings.
func Strings(v *structpb.Value) []string {
	items := v.GetListValue().GetValues()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.GetStringValue())
	}
	return out
}

// StringList converts strings into a list value.
func StringList(values []string) *structpb.Value {
	list := make([]*structpb.Value, len(values))
	for i, v := range values {
		list[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

// EncodeSession converts a session, nil included, into a value.
func EncodeSession(s *backend.Session) *structpb.Value {
	if s == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUserID:    structpb.NewStringValue(s.UserID),
		FieldEmail:     structpb.NewStringValue(s.Email),
		FieldName:      structpb.NewStringValue(s.DisplayName),
		FieldToken:     structpb.NewStringValue(s.AccessToken),
		FieldExpiresAt: structpb.NewStringValue(s.ExpiresAt.UTC().Format(time.RFC3339)),
	}})
}

// DecodeSession converts a value into a session; null decodes to nil.
func DecodeSession(v *structpb.Value) (*backend.Session, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, nil
	}
	fields := s.GetFields()
	session := &backend.Session{
		UserID:      fields[FieldUserID].GetStringValue(),
		Email:       fields[FieldEmail].GetStringValue(),
		DisplayName: fields[FieldName].GetStringValue(),
		AccessToken: fields[FieldToken].GetStringValue(),
	}
	if raw := fields[FieldExpiresAt].GetStringValue(); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session expiry: %w", err)
		}
		session.ExpiresAt = t
	}
	if session.UserID == "" {
		return nil, apperr.Validation("session without user")
	}
	return session, nil
}

// String returns the string field name of s.
func String(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}
