package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/export"
	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/operators"
	"github.com/redromiee/bag-tracker/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "tracker")

// Directory resolves operators. *operators.Registry implements it.
type Directory interface {
	Lookup(ctx context.Context, username string) (*models.Operator, error)
	Verify(ctx context.Context, username, token string) (*models.Operator, error)
}

var _ Directory = (*operators.Registry)(nil)

// Server is the ledger service: it appends scans, deletes them and exports
// date ranges as spreadsheets.
type Server struct {
	e         *gin.Engine
	ledger    model.Ledger
	operators Directory
	archive   model.Archiver
	location  *time.Location
	now       func() time.Time
}

type Option func(*Server)

// WithOperators enables approval checks and branch tagging.
func WithOperators(d Directory) Option {
	return func(s *Server) {
		s.operators = d
	}
}

// WithArchive keeps a copy of every export.
func WithArchive(a model.Archiver) Option {
	return func(s *Server) {
		s.archive = a
	}
}

// WithLocation sets the zone used for naive timestamps and spreadsheet cells.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		s.location = loc
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(ledger model.Ledger, opts ...Option) (*Server, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	s := &Server{
		e:        gin.New(),
		ledger:   ledger,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.operators == nil {
		log.Warnf("no operator registry configured, every approval check succeeds")
	}
	s.initRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Run(addr string) error {
	return s.e.Run(addr)
}

func (s *Server) initRoutes() {
	s.e.Use(gin.Logger())
	s.e.Use(gin.Recovery())
	s.e.Use(cors.Default())

	s.e.POST("/record_scan", s.handleRecordScan)
	s.e.POST("/delete_scan", s.handleDeleteScan)
	s.e.POST("/check_approval", s.handleCheckApproval)
	s.e.GET("/export", s.handleExport)
	s.e.GET("/healthz", s.handleHealthz)
}

func statusError(message string) models.StatusResponse {
	return models.StatusResponse{Status: models.StatusError, Message: message}
}

var badRequest = statusError("bad request")

func validateKey(binId, bagId string, scanType models.ScanType) error {
	if !scanType.Valid() {
		return fmt.Errorf("invalid scan_type %q", scanType)
	}
	if binId == "" || bagId == "" {
		return fmt.Errorf("bin_id and bag_id are required")
	}
	if limit := scanType.MaxBinLength(); utf8.RuneCountInString(binId) > limit {
		return fmt.Errorf("bin_id exceeds %d characters", limit)
	}
	return nil
}

// naiveLayouts are accepted for clients that send local time without a zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (s *Server) parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return s.now(), nil
	}
	if t, err := time.Parse(models.TimestampLayout, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

func (s *Server) branchOf(ctx context.Context, username string) string {
	if s.operators == nil {
		return ""
	}
	op, err := s.operators.Lookup(ctx, username)
	if err != nil {
		if !errors.Is(err, operators.ErrNotFound) {
			log.Warnf("unable to look up operator %s: %v", username, err)
		}
		return ""
	}
	return op.Branch
}

func (s *Server) handleRecordScan(c *gin.Context) {
	var req models.RecordScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}
	req.BinId = strings.TrimSpace(req.BinId)
	req.BagId = strings.TrimSpace(req.BagId)
	if err := validateKey(req.BinId, req.BagId, req.ScanType); err != nil {
		c.JSON(http.StatusBadRequest, statusError(err.Error()))
		return
	}
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, statusError("username is required"))
		return
	}
	ts, err := s.parseTimestamp(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, statusError(err.Error()))
		return
	}

	ctx := c.Request.Context()
	entry := models.LedgerEntry{
		Id:         uuid.NewString(),
		ScanId:     req.ScanId,
		Timestamp:  ts,
		ReceivedAt: s.now(),
		ScanType:   req.ScanType,
		BinId:      req.BinId,
		BagId:      req.BagId,
		Username:   req.Username,
		Branch:     s.branchOf(ctx, req.Username),
		Status:     models.StatusScanned,
	}

	err = s.ledger.Append(ctx, entry)
	switch {
	case errors.Is(err, model.ErrDuplicate):
		log.Debugf("scan %s already recorded", req.ScanId)
		c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Message: "already recorded"})
	case err != nil:
		// Storage failures are reported in the body; the client retries on them.
		log.Errorf("unable to record scan %s/%s: %v", req.BinId, req.BagId, err)
		c.JSON(http.StatusOK, statusError(err.Error()))
	default:
		c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess})
	}
}

func (s *Server) handleDeleteScan(c *gin.Context) {
	var req models.DeleteScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}
	if err := validateKey(req.BinId, req.BagId, req.ScanType); err != nil {
		c.JSON(http.StatusBadRequest, statusError(err.Error()))
		return
	}

	n, err := s.ledger.Delete(c.Request.Context(), models.ScanKey{BinId: req.BinId, BagId: req.BagId, ScanType: req.ScanType})
	if err != nil {
		log.Errorf("unable to delete scan %s/%s: %v", req.BinId, req.BagId, err)
		c.JSON(http.StatusOK, statusError(err.Error()))
		return
	}
	if n == 0 {
		c.JSON(http.StatusOK, statusError("scan not found"))
		return
	}
	if n > 1 {
		log.Infof("deleted %d entries for %s %s/%s", n, req.ScanType, req.BinId, req.BagId)
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Deleted: n})
}

func (s *Server) handleCheckApproval(c *gin.Context) {
	var req models.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}

	approved := true
	if s.operators == nil {
		c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Approved: &approved})
		return
	}

	op, err := s.operators.Verify(c.Request.Context(), req.Username, req.Token)
	switch {
	case errors.Is(err, operators.ErrNotFound), errors.Is(err, operators.ErrInvalidToken):
		log.Warnf("approval check failed for %s: %v", req.Username, err)
		approved = false
		c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Approved: &approved})
	case err != nil:
		log.Errorf("unable to verify operator %s: %v", req.Username, err)
		c.JSON(http.StatusOK, statusError(err.Error()))
	default:
		approved = op.Approved
		c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Approved: &approved, Branch: op.Branch})
	}
}

func (s *Server) handleExport(c *gin.Context) {
	rng, err := models.ParseExportRangeIn(c.Query("start_date"), c.Query("end_date"), s.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, statusError(err.Error()))
		return
	}

	ctx := c.Request.Context()
	entries, err := s.ledger.List(ctx, rng.Filter(c.Query("branch")))
	if err != nil {
		log.Errorf("unable to list scans: %v", err)
		c.JSON(http.StatusInternalServerError, statusError(err.Error()))
		return
	}

	buf, err := export.Workbook(entries, s.location)
	if err != nil {
		log.Errorf("unable to render export: %v", err)
		c.JSON(http.StatusInternalServerError, statusError(err.Error()))
		return
	}

	filename := rng.Filename()
	if s.archive != nil {
		if err := s.archive.Archive(ctx, filename, s.now(), bytes.NewReader(buf.Bytes())); err != nil {
			log.Warnf("unable to archive %s: %v", filename, err)
		}
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: models.StatusSuccess})
}
