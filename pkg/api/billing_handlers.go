package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/billing"
	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
)

func (s *Server) registerBillingRoutes(v1 *mux.Router) {
	resolver := s.memberResolver()
	asMember := middleware.RequireOrgRole(resolver, auth.OrgRoleMember)
	asAdmin := middleware.RequireOrgRole(resolver, auth.OrgRoleAdmin)

	v1.Handle("/orgs/{org_id}/quotes", asAdmin(http.HandlerFunc(s.createQuote))).Methods("POST")
	v1.Handle("/orgs/{org_id}/quotes", asMember(http.HandlerFunc(s.listQuotes))).Methods("GET")
	v1.Handle("/orgs/{org_id}/quotes/{id}", asMember(http.HandlerFunc(s.getQuote))).Methods("GET")
	v1.Handle("/orgs/{org_id}/quotes/{id}", asAdmin(http.HandlerFunc(s.updateQuote))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/quotes/{id}/status", asAdmin(http.HandlerFunc(s.updateQuoteStatus))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/quotes/{id}/send", asAdmin(http.HandlerFunc(s.sendQuote))).Methods("POST")
	v1.Handle("/orgs/{org_id}/quotes/{id}/invoices", asAdmin(http.HandlerFunc(s.addInvoicesFromQuote))).Methods("POST")

	v1.Handle("/orgs/{org_id}/invoices", asAdmin(http.HandlerFunc(s.createInvoice))).Methods("POST")
	v1.Handle("/orgs/{org_id}/invoices", asMember(http.HandlerFunc(s.listInvoices))).Methods("GET")
	v1.Handle("/orgs/{org_id}/invoices/{id}", asMember(http.HandlerFunc(s.getInvoice))).Methods("GET")
	v1.Handle("/orgs/{org_id}/invoices/{id}", asAdmin(http.HandlerFunc(s.updateInvoice))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/invoices/{id}/status", asAdmin(http.HandlerFunc(s.updateInvoiceStatus))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/invoices/{id}/send", asAdmin(http.HandlerFunc(s.sendInvoice))).Methods("POST")
}

type createQuoteRequest struct {
	ProjectID *int64             `json:"project_id,omitempty"`
	Items     []billing.LineItem `json:"items"`
}

func (s *Server) createQuote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	var req createQuoteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	quote := &billing.Quote{OrganizationID: orgID, ProjectID: req.ProjectID, Items: req.Items}
	if err := s.deps.Billing.CreateQuote(r.Context(), quote); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, quote)
}

func (s *Server) listQuotes(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	quotes, err := s.deps.Billing.ListQuotes(orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quotes)
}

// quoteInOrg loads a quote and verifies it belongs to the org in the URL
func (s *Server) quoteInOrg(w http.ResponseWriter, r *http.Request) (*billing.Quote, bool) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return nil, false
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}

	quote, err := s.deps.Billing.GetQuote(id)
	if err != nil || quote.OrganizationID != orgID {
		httputil.WriteNotFoundError(w, "quote not found")
		return nil, false
	}
	return quote, true
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	quote, ok := s.quoteInOrg(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}

func (s *Server) updateQuote(w http.ResponseWriter, r *http.Request) {
	quote, ok := s.quoteInOrg(w, r)
	if !ok {
		return
	}

	var req billing.UpdateQuoteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.deps.Billing.UpdateQuote(quote.ID, &req)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

type quoteStatusRequest struct {
	Status billing.QuoteStatus `json:"status"`
}

func (s *Server) updateQuoteStatus(w http.ResponseWriter, r *http.Request) {
	quote, ok := s.quoteInOrg(w, r)
	if !ok {
		return
	}

	var req quoteStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.deps.Billing.UpdateQuoteStatus(r.Context(), quote.ID, req.Status)
	if err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) sendQuote(w http.ResponseWriter, r *http.Request) {
	quote, ok := s.quoteInOrg(w, r)
	if !ok {
		return
	}

	if err := s.deps.Billing.SendQuote(r.Context(), quote.ID); err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type invoiceSplitRequest struct {
	InvoiceSplit []int `json:"invoice_split"`
}

func (s *Server) addInvoicesFromQuote(w http.ResponseWriter, r *http.Request) {
	quote, ok := s.quoteInOrg(w, r)
	if !ok {
		return
	}

	var req invoiceSplitRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	invoices, err := s.deps.Billing.AddInvoicesBasedOnQuote(r.Context(), quote.ID, req.InvoiceSplit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, invoices)
}

type createInvoiceRequest struct {
	ProjectID *int64             `json:"project_id,omitempty"`
	QuoteID   *int64             `json:"quote_id,omitempty"`
	Items     []billing.LineItem `json:"items"`
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	var req createInvoiceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	invoice := &billing.Invoice{
		OrganizationID: orgID,
		ProjectID:      req.ProjectID,
		QuoteID:        req.QuoteID,
		Items:          req.Items,
	}
	if err := s.deps.Billing.CreateInvoice(r.Context(), invoice); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, invoice)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	invoices, err := s.deps.Billing.ListInvoices(orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invoices)
}

func (s *Server) invoiceInOrg(w http.ResponseWriter, r *http.Request) (*billing.Invoice, bool) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return nil, false
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}

	invoice, err := s.deps.Billing.GetInvoice(id)
	if err != nil || invoice.OrganizationID != orgID {
		httputil.WriteNotFoundError(w, "invoice not found")
		return nil, false
	}
	return invoice, true
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, ok := s.invoiceInOrg(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invoice)
}

func (s *Server) updateInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, ok := s.invoiceInOrg(w, r)
	if !ok {
		return
	}

	var req billing.UpdateInvoiceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.deps.Billing.UpdateInvoice(invoice.ID, &req)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

type invoiceStatusRequest struct {
	Status billing.InvoiceStatus `json:"status"`
}

// updateInvoiceStatus settles an invoice. The patch always succeeds for a
// valid target status; the notification email is fire-and-forget.
func (s *Server) updateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	invoice, ok := s.invoiceInOrg(w, r)
	if !ok {
		return
	}

	var req invoiceStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.deps.Billing.UpdateInvoiceStatus(r.Context(), invoice.ID, req.Status)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) sendInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, ok := s.invoiceInOrg(w, r)
	if !ok {
		return
	}

	if err := s.deps.Billing.SendInvoice(r.Context(), invoice.ID); err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
