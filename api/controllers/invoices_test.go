package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nabd-ai/vertex-backend/internal/invoices"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

type stubInvoices struct {
	created invoices.CreateInput
	isAdmin bool
	actor   *outbox.ActorRef
	reason  string
	getErr  error
}

func (s *stubInvoices) Create(ctx context.Context, input invoices.CreateInput) (*models.Invoice, error) {
	s.created = input
	return &models.Invoice{ID: uuid.New(), UserID: input.UserID, Amount: decimal.RequireFromString(input.Amount), Status: enums.InvoiceStatusPending}, nil
}

func (s *stubInvoices) Get(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*models.Invoice, error) {
	s.isAdmin = isAdmin
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &models.Invoice{ID: id, UserID: callerID}, nil
}

func (s *stubInvoices) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Invoice], error) {
	return pagination.Page[models.Invoice]{}, nil
}

func (s *stubInvoices) MarkPaid(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*models.Invoice, error) {
	s.actor = actor
	return &models.Invoice{ID: id, Status: enums.InvoiceStatusPaid}, nil
}

func (s *stubInvoices) MarkFailed(ctx context.Context, id uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Invoice, error) {
	s.actor = actor
	s.reason = reason
	return &models.Invoice{ID: id, Status: enums.InvoiceStatusFailed}, nil
}

func TestInvoiceCreateUsesCaller(t *testing.T) {
	userID := uuid.New()
	svc := &stubInvoices{}
	req := callerRequest(http.MethodPost, "/api/invoices", `{"amount":"19.99","currency":"usd"}`, userID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	InvoiceCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.created.UserID != userID || svc.created.Amount != "19.99" || svc.created.Currency != "usd" {
		t.Fatalf("unexpected input %+v", svc.created)
	}
}

func TestInvoiceCreateRejectsUnknownField(t *testing.T) {
	req := callerRequest(http.MethodPost, "/api/invoices", `{"amount":"5","credits":100000}`, uuid.New(), enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	InvoiceCreate(&stubInvoices{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestInvoiceDetailPassesAdminFlag(t *testing.T) {
	svc := &stubInvoices{}
	id := uuid.New()
	req := addRouteParam(callerRequest(http.MethodGet, "/", "", uuid.New(), enums.UserRoleAdmin), "invoiceId", id.String())
	resp := httptest.NewRecorder()
	InvoiceDetail(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !svc.isAdmin {
		t.Fatal("expected admin flag")
	}

	svc = &stubInvoices{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")}
	req = addRouteParam(callerRequest(http.MethodGet, "/", "", uuid.New(), enums.UserRoleBuyer), "invoiceId", id.String())
	resp = httptest.NewRecorder()
	InvoiceDetail(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAdminInvoiceSettlement(t *testing.T) {
	adminID := uuid.New()
	id := uuid.New()
	svc := &stubInvoices{}

	req := addRouteParam(callerRequest(http.MethodPost, "/", "", adminID, enums.UserRoleAdmin), "invoiceId", id.String())
	resp := httptest.NewRecorder()
	AdminInvoicePaid(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if svc.actor == nil || svc.actor.UserID != adminID || svc.actor.Role != string(enums.UserRoleAdmin) {
		t.Fatalf("unexpected actor %+v", svc.actor)
	}

	req = addRouteParam(callerRequest(http.MethodPost, "/", `{}`, adminID, enums.UserRoleAdmin), "invoiceId", id.String())
	resp = httptest.NewRecorder()
	AdminInvoiceFailed(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason got %d", resp.Code)
	}

	req = addRouteParam(callerRequest(http.MethodPost, "/", `{"reason":"card declined"}`, adminID, enums.UserRoleAdmin), "invoiceId", id.String())
	resp = httptest.NewRecorder()
	AdminInvoiceFailed(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if svc.reason != "card declined" {
		t.Fatalf("unexpected reason %q", svc.reason)
	}
}
