package encounter

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// maxAudioBytes caps multipart audio uploads at 25 MB, the transcription
// provider's own limit.
const maxAudioBytes = 25 << 20

// Handler exposes the encounter lifecycle over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the encounter routes on the group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/appointments/book", h.book)
	g.GET("/appointments", h.list)
	g.DELETE("/appointments/:id", h.delete)
	g.PATCH("/appointments/:id/reschedule", h.reschedule)
	g.POST("/appointments/:id/dictate", h.dictate)
	g.POST("/appointments/:id/addendum", h.addendum)
	g.POST("/appointments/:id/audio", h.dictateAudio)
	g.POST("/appointments/:id/addendum-audio", h.addendumAudio)
	g.GET("/appointments/:id/transcript", h.transcript)
	g.POST("/appointments/:id/status", h.advanceStatus)
	g.GET("/view/:id", h.view)
}

type bookRequest struct {
	PatientName      string `json:"patient_name"`
	DOB              string `json:"dob"`
	DateOfService    string `json:"date_of_service"`
	Physician        string `json:"physician"`
	Transcriptionist string `json:"transcriptionist"`
	Facility         string `json:"facility"`
}

func (h *Handler) book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_name is required")
	}
	e, err := h.svc.CreateBooked(c.Request().Context(), PatientIdentity{
		PatientName:      req.PatientName,
		DOB:              req.DOB,
		DateOfService:    req.DateOfService,
		Physician:        req.Physician,
		Transcriptionist: req.Transcriptionist,
		Facility:         req.Facility,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) list(c echo.Context) error {
	out, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type rescheduleRequest struct {
	DateOfService string `json:"date_of_service"`
}

func (h *Handler) reschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DateOfService == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date_of_service is required")
	}
	e, err := h.svc.Reschedule(c.Request().Context(), c.Param("id"), req.DateOfService)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

type dictationRequest struct {
	Transcript string `json:"transcript"`
}

func (h *Handler) dictate(c echo.Context) error {
	var req dictationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Transcript == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
	}
	e, err := h.svc.IngestInitialDictation(c.Request().Context(), c.Param("id"), req.Transcript)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) addendum(c echo.Context) error {
	var req dictationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Transcript == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
	}
	e, err := h.svc.IngestAddendum(c.Request().Context(), c.Param("id"), req.Transcript)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) dictateAudio(c echo.Context) error {
	audio, filename, err := readAudio(c)
	if err != nil {
		return err
	}
	e, err := h.svc.IngestInitialAudio(c.Request().Context(), c.Param("id"), audio, filename)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) addendumAudio(c echo.Context) error {
	audio, filename, err := readAudio(c)
	if err != nil {
		return err
	}
	e, err := h.svc.IngestAddendumAudio(c.Request().Context(), c.Param("id"), audio, filename)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) transcript(c echo.Context) error {
	text, err := h.svc.Transcript(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, text)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) advanceStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	next := Status(req.Status)
	if !next.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status "+strconv.Quote(req.Status))
	}
	e, err := h.svc.AdvanceStatus(c.Request().Context(), c.Param("id"), next)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

type viewResponse struct {
	Encounter *Encounter    `json:"encounter"`
	Versions  []VersionInfo `json:"versions"`
}

func (h *Handler) view(c echo.Context) error {
	version := 0
	if raw := c.QueryParam("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "version must be a positive integer")
		}
		version = v
	}
	e, versions, err := h.svc.ProjectAtVersion(c.Request().Context(), c.Param("id"), version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, viewResponse{Encounter: e, Versions: versions})
}

func readAudio(c echo.Context) ([]byte, string, error) {
	fh, err := c.FormFile("audio")
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	if fh.Size > maxAudioBytes {
		return nil, "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio exceeds size limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "cannot read audio file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxAudioBytes+1))
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "cannot read audio file")
	}
	if len(data) > maxAudioBytes {
		return nil, "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio exceeds size limit")
	}
	return data, fh.Filename, nil
}

// httpError translates domain errors to transport status codes. The mapping
// lives here and nowhere else; the domain never sees HTTP.
func httpError(err error) error {
	var pe *PatchError
	var ee *ExtractionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, pe.Error())
	case errors.As(err, &ee):
		return echo.NewHTTPError(http.StatusBadGateway, ee.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
