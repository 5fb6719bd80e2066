package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/middleware"
	"github.com/mmynk/lifeboard/internal/policy"
	"github.com/mmynk/lifeboard/internal/wire"
)

// DataService implements the table API over the row policy.
type DataService struct {
	policy *policy.Policy
	logger *slog.Logger
}

// NewDataService creates a new DataService.
func NewDataService(p *policy.Policy, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{policy: p, logger: logger}
}

// NewDataServiceHandler returns the mount path and handler of svc.
func NewDataServiceHandler(svc *DataService, opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux()
	m.handle(wire.SelectProcedure, svc.Select, opts...)
	m.handle(wire.InsertProcedure, svc.Insert, opts...)
	m.handle(wire.UpdateProcedure, svc.Update, opts...)
	m.handle(wire.DeleteProcedure, svc.Delete, opts...)
	m.handle(wire.UpsertProcedure, svc.Upsert, opts...)
	return "/" + wire.DataServiceName + "/", m
}

func (s *DataService) tables(ctx context.Context) backend.Tables {
	return s.policy.For(middleware.GetUserID(ctx))
}

func (s *DataService) fail(op, table string, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error(op+" failed", "table", table, "error", err)
	}
	return apperr.ToConnect(err)
}

// Select returns the rows of a table the caller may see.
func (s *DataService) Select(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	q, err := wire.DecodeQuery(req.Msg)
	if err != nil {
		return nil, apperr.ToConnect(err)
	}
	s.logger.Debug("Select request received", "table", q.Table, "filters", len(q.Filters))

	rows, err := s.tables(ctx).Select(ctx, q)
	if err != nil {
		return nil, s.fail("Select", q.Table, err)
	}
	out, err := wire.EncodeRows(rows)
	if err != nil {
		return nil, s.fail("Select", q.Table, err)
	}
	return message(map[string]*structpb.Value{wire.FieldRows: out}), nil
}

// Insert creates a row.
func (s *DataService) Insert(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	table := wire.String(req.Msg, wire.FieldTable)
	s.logger.Debug("Insert request received", "table", table)

	row, err := s.tables(ctx).Insert(ctx, table, wire.DecodeRow(req.Msg.GetFields()[wire.FieldRow].GetStructValue()))
	if err != nil {
		return nil, s.fail("Insert", table, err)
	}
	return rowResponse(row)
}

// Update changes matching rows.
func (s *DataService) Update(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	table := fields[wire.FieldTable].GetStringValue()
	filters, err := wire.DecodeFilters(fields[wire.FieldFilters])
	if err != nil {
		return nil, apperr.ToConnect(err)
	}
	s.logger.Debug("Update request received", "table", table, "filters", len(filters))

	rows, err := s.tables(ctx).Update(ctx, table, filters, wire.DecodeRow(fields[wire.FieldValues].GetStructValue()))
	if err != nil {
		return nil, s.fail("Update", table, err)
	}
	out, err := wire.EncodeRows(rows)
	if err != nil {
		return nil, s.fail("Update", table, err)
	}
	return message(map[string]*structpb.Value{wire.FieldRows: out}), nil
}

// Delete removes matching rows.
func (s *DataService) Delete(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	table := fields[wire.FieldTable].GetStringValue()
	filters, err := wire.DecodeFilters(fields[wire.FieldFilters])
	if err != nil {
		return nil, apperr.ToConnect(err)
	}
	s.logger.Debug("Delete request received", "table", table, "filters", len(filters))

	n, err := s.tables(ctx).Delete(ctx, table, filters)
	if err != nil {
		return nil, s.fail("Delete", table, err)
	}
	return message(map[string]*structpb.Value{wire.FieldCount: structpb.NewNumberValue(float64(n))}), nil
}

// Upsert inserts or updates a row keyed by the conflict columns.
func (s *DataService) Upsert(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	table := fields[wire.FieldTable].GetStringValue()
	conflict := wire.Strings(fields[wire.FieldConflict])
	s.logger.Debug("Upsert request received", "table", table, "conflict", conflict)

	row, err := s.tables(ctx).Upsert(ctx, table, wire.DecodeRow(fields[wire.FieldRow].GetStructValue()), conflict)
	if err != nil {
		return nil, s.fail("Upsert", table, err)
	}
	return rowResponse(row)
}

func rowResponse(row backend.Row) (*connect.Response[structpb.Struct], error) {
	s, err := wire.EncodeRow(row)
	if err != nil {
		return nil, apperr.ToConnect(err)
	}
	return message(map[string]*structpb.Value{wire.FieldRow: structpb.NewStructValue(s)}), nil
}
