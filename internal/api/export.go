package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"LeadDesk/internal/models"
	"LeadDesk/internal/payments"
	"LeadDesk/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const exportTimeLayout = "2006-01-02 15:04"

// newSheetFile returns a workbook whose only sheet is sheetName, with the
// header row written.
func newSheetFile(sheetName string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.SetCellValue(sheetName, cell, header)
	}
	return f, nil
}

func setRow(f *excelize.File, sheetName string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

const leadsSheet = "Leads"

func buildLeadsWorkbook(leads []models.Lead) (*excelize.File, error) {
	headers := []string{"ID", "Affiliate ID", "Full name", "Email", "Phone", "Website", "Program", "Status",
		"Price", "Paid", "Call requested", "Meeting link", "Payout request", "Admin note", "Created at"}
	f, err := newSheetFile(leadsSheet, headers)
	if err != nil {
		return nil, err
	}

	for i, l := range leads {
		var price interface{} = ""
		if l.Price != nil {
			price = l.Price.InexactFloat64()
		}
		values := []interface{}{
			l.ID, l.AffiliateID, l.FullName, l.Email, l.Phone, l.Website, l.Program,
			utils.GetStatusDisplayName(l.Status), price, yesNo(l.Paid), yesNo(l.CallRequested),
			l.CallMeetingLink, l.PayoutRequestID.String, l.AdminNote, l.CreatedAt.UTC().Format(exportTimeLayout),
		}
		if err := setRow(f, leadsSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

const payoutsSheet = "Payouts"

func buildPayoutsWorkbook(payouts []models.PayoutWithUser) (*excelize.File, error) {
	headers := []string{"ID", "Affiliate ID", "Affiliate", "Amount", "Method", "Payment details", "Status",
		"Note", "Requested at", "Processed at"}
	f, err := newSheetFile(payoutsSheet, headers)
	if err != nil {
		return nil, err
	}

	for i, p := range payouts {
		affiliate := ""
		if p.User != nil {
			affiliate = utils.GetUserDisplayName(*p.User)
		}
		processed := ""
		if p.ProcessedAt.Valid {
			processed = p.ProcessedAt.Time.UTC().Format(exportTimeLayout)
		}
		values := []interface{}{
			p.ID, p.AffiliateID, affiliate, p.Amount.InexactFloat64(), p.Method, payments.Describe(p.Details),
			utils.GetStatusDisplayName(p.Status), p.Note, p.CreatedAt.UTC().Format(exportTimeLayout), processed,
		}
		if err := setRow(f, payoutsSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, f *excelize.File, prefix string) {
	defer f.Close()
	filename := fmt.Sprintf("%s-%s.xlsx", prefix, time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		h.log.WithError(err).Error("write export workbook")
	}
}

// ExportLeads streams the filtered admin lead listing as XLSX.
func (h *Handler) ExportLeads(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	f, err := leadFilterFromQuery(r, true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads, err := h.svc.AdminListLeads(r.Context(), sess, f)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	book, err := buildLeadsWorkbook(leads)
	if err != nil {
		writeServiceError(w, h.log, fmt.Errorf("build leads workbook: %w", err))
		return
	}
	h.writeWorkbook(w, book, "leads")
}

// ExportPayouts streams the filtered admin payout listing as XLSX.
func (h *Handler) ExportPayouts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	payouts, err := h.svc.AdminListPayouts(r.Context(), sess, payoutFilterFromQuery(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	book, err := buildPayoutsWorkbook(payouts)
	if err != nil {
		writeServiceError(w, h.log, fmt.Errorf("build payouts workbook: %w", err))
		return
	}
	h.writeWorkbook(w, book, "payouts")
}
