package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	"github.com/carebridge/carebridge-api/pkg/export"
	"github.com/carebridge/carebridge-api/pkg/storage"
)

type chartExportSource interface {
	List(ctx context.Context, filter models.ChartEntryFilter) ([]models.ChartEntry, int, error)
}

type updateExportSource interface {
	List(ctx context.Context, filter models.ResidentUpdateFilter) ([]models.ResidentUpdate, int, error)
}

type overrideExportSource interface {
	List(ctx context.Context, filter models.OverrideWindowFilter) ([]models.OverrideWindow, int, error)
}

type patientExportSource interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, subtitles ...string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix    string
	FacilityName string
	ResultTTL    time.Duration
	PageLimit    int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	charts    chartExportSource
	updates   updateExportSource
	overrides overrideExportSource
	patients  patientExportSource
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(charts chartExportSource, updates updateExportSource, overrides overrideExportSource, patients patientExportSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 200
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		charts:    charts,
		updates:   updates,
		overrides: overrides,
		patients:  patients,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title, s.cfg.FacilityName)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "facility"
	if job.Params.PatientID != nil && *job.Params.PatientID != "" {
		scope = sanitizeFilename(*job.Params.PatientID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeLateSubmissions:
		return s.buildLateSubmissionsDataset(ctx, job.Params)
	case models.ReportTypeChartActivity:
		return s.buildChartActivityDataset(ctx, job.Params)
	case models.ReportTypeOverrideWindows:
		return s.buildOverrideWindowsDataset(ctx, job.Params)
	case models.ReportTypePatientSummary:
		return s.buildPatientSummaryDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildLateSubmissionsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	chartFilter := models.ChartEntryFilter{
		PatientID: deref(params.PatientID),
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		LateOnly:  true,
		Page:      1,
		PageSize:  s.cfg.PageLimit,
	}
	entries, _, err := s.charts.List(ctx, chartFilter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	updateFilter := models.ResidentUpdateFilter{
		PatientID: deref(params.PatientID),
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		LateOnly:  true,
		Page:      1,
		PageSize:  s.cfg.PageLimit,
	}
	updates, _, err := s.updates.List(ctx, updateFilter)
	if err != nil {
		return export.Dataset{}, "", err
	}

	dataRows := make([]map[string]string, 0, len(entries)+len(updates))
	for _, entry := range entries {
		dataRows = append(dataRows, map[string]string{
			"Type":          "Chart Entry",
			"Patient ID":    entry.PatientID,
			"Recorded By":   entry.RecordedBy,
			"Effective At":  formatReportTime(entry.EntryTime),
			"Justification": deref(entry.Justification),
		})
	}
	for _, update := range updates {
		kind := "Weekly Update"
		if update.Period == models.PeriodMonthly {
			kind = "Monthly Update"
		}
		dataRows = append(dataRows, map[string]string{
			"Type":          kind,
			"Patient ID":    update.PatientID,
			"Recorded By":   update.RecordedBy,
			"Effective At":  formatReportTime(update.SubmittedAt),
			"Justification": deref(update.Justification),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Type", "Patient ID", "Recorded By", "Effective At", "Justification"},
		Rows:    dataRows,
	}
	return dataset, "Late Submissions Report", nil
}

func (s *ExportService) buildChartActivityDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.ChartEntryFilter{
		PatientID: deref(params.PatientID),
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		Page:      1,
		PageSize:  s.cfg.PageLimit,
	}
	entries, _, err := s.charts.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		late := "no"
		if entry.Late {
			late = "yes"
		}
		dataRows = append(dataRows, map[string]string{
			"Patient ID":  entry.PatientID,
			"Recorded By": entry.RecordedBy,
			"Entry Time":  formatReportTime(entry.EntryTime),
			"Category":    string(entry.Category),
			"Late":        late,
			"Observation": entry.Observation,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Patient ID", "Recorded By", "Entry Time", "Category", "Late", "Observation"},
		Rows:    dataRows,
	}
	return dataset, "Chart Activity Report", nil
}

func (s *ExportService) buildOverrideWindowsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.OverrideWindowFilter{
		PatientID: deref(params.PatientID),
		Page:      1,
		PageSize:  s.cfg.PageLimit,
	}
	windows, _, err := s.overrides.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(windows))
	for _, window := range windows {
		dataRows = append(dataRows, map[string]string{
			"Patient ID": window.PatientID,
			"Kind":       string(window.Kind),
			"Granted To": window.GrantedTo,
			"Granted By": window.GrantedBy,
			"Starts":     formatReportTime(window.StartAt),
			"Ends":       formatReportTime(window.End()),
			"Reason":     window.Reason,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Patient ID", "Kind", "Granted To", "Granted By", "Starts", "Ends", "Reason"},
		Rows:    dataRows,
	}
	return dataset, "Override Windows Report", nil
}

func (s *ExportService) buildPatientSummaryDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	var patients []models.Patient
	if params.PatientID != nil && *params.PatientID != "" {
		patient, err := s.patients.FindByID(ctx, *params.PatientID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		patients = []models.Patient{*patient}
	} else {
		var err error
		patients, _, err = s.patients.List(ctx, models.PatientFilter{Page: 1, PageSize: s.cfg.PageLimit})
		if err != nil {
			return export.Dataset{}, "", err
		}
	}
	dataRows := make([]map[string]string, 0, len(patients))
	for _, patient := range patients {
		active := "discharged"
		if patient.Active {
			active = "active"
		}
		dataRows = append(dataRows, map[string]string{
			"Patient ID": patient.ID,
			"Name":       fmt.Sprintf("%s %s", patient.FirstName, patient.LastName),
			"Room":       patient.RoomNumber,
			"Admitted":   formatReportTime(patient.AdmittedAt),
			"Status":     active,
			"Allergies":  deref(patient.Allergies),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Patient ID", "Name", "Room", "Admitted", "Status", "Allergies"},
		Rows:    dataRows,
	}
	return dataset, "Resident Summary Report", nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
