package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

// serviceMux routes the procedures of one service.
type serviceMux struct {
	mux *http.ServeMux
}

func newServiceMux() *serviceMux {
	return &serviceMux{mux: http.NewServeMux()}
}

func (m *serviceMux) handle(procedure string, fn unaryFunc, opts ...connect.HandlerOption) {
	m.mux.Handle(procedure, connect.NewUnaryHandler[structpb.Struct, structpb.Struct](procedure, fn, opts...))
}

func (m *serviceMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

func message(fields map[string]*structpb.Value) *connect.Response[structpb.Struct] {
	return connect.NewResponse(&structpb.Struct{Fields: fields})
}
