package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraforge/internal/builds/domain"
	"github.com/pendergraft/contraforge/internal/chains"
	"github.com/pendergraft/contraforge/internal/compliance"
)

// mockService implements domain.Service for testing
type mockService struct {
	compileReq domain.CompileRequest
	testReq    domain.TestRequest
	listFilter domain.ListFilter
	listPage   domain.PaginationParams
	err        error
}

func (m *mockService) Compile(ctx context.Context, req domain.CompileRequest) (*chains.CompilationResult, error) {
	m.compileReq = req
	if m.err != nil {
		return nil, m.err
	}
	if strings.Contains(req.SourceCode, "syntax error") {
		return chains.CompilationFailure(chains.CompileRequest{ContractName: req.ContractName}, "ParserError: Expected ';'"), nil
	}
	return &chains.CompilationResult{Success: true, Bytecode: "0x6080", ContractName: req.ContractName, ABI: []chains.ABIEntry{}}, nil
}

func (m *mockService) RunTests(ctx context.Context, req domain.TestRequest) (*chains.TestOutcome, error) {
	m.testReq = req
	if m.err != nil {
		return nil, m.err
	}
	o := &chains.TestOutcome{}
	o.Add(chains.TestRecord{Name: "testOk()", Status: chains.TestPassed})
	o.Success = true
	return o, nil
}

func (m *mockService) Score(ctx context.Context, abi json.RawMessage) (*compliance.Report, error) {
	if m.err != nil {
		return nil, m.err
	}
	r := compliance.ScoreJSON(abi)
	return &r, nil
}

func (m *mockService) Get(ctx context.Context, id string) (*domain.Build, error) {
	if m.err != nil {
		return nil, m.err
	}
	if id != "b1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Build{ID: "b1", Kind: "compile", ContractName: "Token", Success: true}, nil
}

func (m *mockService) List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error) {
	m.listFilter = filter
	m.listPage = pagination
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ListResult{Builds: []domain.Build{{ID: "b1"}}, HasMore: true, NextCursor: "o1"}, nil
}

func setupRouter(svc domain.Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc, nil)
	h.RegisterRoutes(r)
	h.RegisterReadRoutes(r)
	return r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Compile(t *testing.T) {
	svc := &mockService{}
	router := setupRouter(svc)

	t.Run("success", func(t *testing.T) {
		rec := do(router, "POST", "/compile", `{"sourceCode":"contract Token {}","contractName":"Token","compilerVersion":"0.8.24"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		var result chains.CompilationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, "0x6080", result.Bytecode)
		assert.Equal(t, "0.8.24", svc.compileReq.CompilerVersion)
	})

	t.Run("compilation failure is still 200", func(t *testing.T) {
		rec := do(router, "POST", "/compile", `{"sourceCode":"syntax error","contractName":"Token"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		var result chains.CompilationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.Success)
		assert.Equal(t, "ParserError: Expected ';'", result.Error)
		assert.NotNil(t, result.ABI)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rec := do(router, "POST", "/compile", `{bad`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid request", fmt.Errorf("%w: invalid contract name", domain.ErrInvalidRequest), http.StatusBadRequest, "INVALID_REQUEST"},
		{"history disabled", domain.ErrHistoryDisabled, http.StatusNotImplemented, "NOT_IMPLEMENTED"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&mockService{err: tt.err})
			for _, call := range []struct{ method, path, body string }{
				{"POST", "/compile", `{"sourceCode":"x","contractName":"T"}`},
				{"POST", "/test", `{"sourceCode":"x","contractName":"T","testCode":"y"}`},
				{"GET", "/builds", ""},
			} {
				rec := do(router, call.method, call.path, call.body)
				assert.Equal(t, tt.wantStatus, rec.Code, call.path)

				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code, call.path)
			}
		})
	}
}

func TestHandler_Test(t *testing.T) {
	svc := &mockService{}
	router := setupRouter(svc)

	rec := do(router, "POST", "/test", `{"sourceCode":"contract Token {}","contractName":"Token","testCode":"contract TokenTest {}"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var outcome chains.TestOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Total)
	assert.Equal(t, "contract TokenTest {}", svc.testReq.TestCode)
}

func TestHandler_Compliance(t *testing.T) {
	router := setupRouter(&mockService{})

	t.Run("scores abi", func(t *testing.T) {
		rec := do(router, "POST", "/compliance", `{"abi":[{"type":"function","name":"pause"},{"type":"function","name":"freeze"}]}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		var report compliance.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.False(t, report.Compliant)
		assert.Equal(t, 0.1, report.Confidence)
	})

	t.Run("missing abi", func(t *testing.T) {
		rec := do(router, "POST", "/compliance", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Builds(t *testing.T) {
	svc := &mockService{}
	router := setupRouter(svc)

	t.Run("get", func(t *testing.T) {
		rec := do(router, "GET", "/builds/b1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"contractName":"Token"`)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := do(router, "GET", "/builds/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list with filters", func(t *testing.T) {
		rec := do(router, "GET", "/builds?limit=5&kind=test&contract=Token&success=false&cursor=o5", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		var result domain.ListResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.HasMore)
		assert.Equal(t, "o1", result.NextCursor)

		assert.Equal(t, "test", svc.listFilter.Kind)
		assert.Equal(t, "Token", svc.listFilter.ContractName)
		require.NotNil(t, svc.listFilter.Success)
		assert.False(t, *svc.listFilter.Success)
		assert.Equal(t, 5, svc.listPage.Limit)
		assert.Equal(t, "o5", svc.listPage.Cursor)
	})

	t.Run("bad query values", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/builds?limit=abc", "").Code)
		assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/builds?success=maybe", "").Code)
	})
}

func TestHandler_BodyTooLarge(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, 16)
			next.ServeHTTP(w, r)
		})
	})
	NewHandler(&mockService{}, nil).RegisterRoutes(r)

	rec := do(r, "POST", "/compile", `{"sourceCode":"contract Token {}","contractName":"Token"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
