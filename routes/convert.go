package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"pixbatch/archive"
	"pixbatch/cancellation"
	"pixbatch/config"
	"pixbatch/job"
	"pixbatch/logger"
	"pixbatch/models"
	"pixbatch/progress"
	"pixbatch/utils"
)

const (
	// uploadChunk is how much of a part is read between cancellation checks.
	uploadChunk = 32 << 10
	// maxFieldSize bounds non-file form values.
	maxFieldSize = 4 << 10
	// formOverhead is added to the body limit for headers and form fields.
	formOverhead = 1 << 20
)

var errPartTooLarge = errors.New("part exceeds size limit")

// uploadError is a rejected upload and the status it maps to.
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

func badRequest(format string, args ...any) *uploadError {
	return &uploadError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// upload is the collected body of a convert request.
type upload struct {
	items      []models.Item
	input      models.SettingsInput
	archive    string
	storageKey string
	subDir     string
}

// verifyJWT checks the bearer token when a secret or public key is configured.
// Without either every request is accepted and no claims are returned.
func verifyJWT(r *http.Request) (*models.ConvertClaims, error) {
	cfg := utils.VerifyConfig{SecretKey: config.GetJWTSecret(), ClockSkew: time.Minute}
	if raw := config.GetJWTPublicKey(); raw != "" {
		key, err := utils.LoadRSAPublicKey(raw)
		if err != nil {
			logger.Errorf("JWT public key unusable: %v", err)
			return nil, fmt.Errorf("token verification unavailable")
		}
		cfg.PublicKey = key
	}
	if cfg.SecretKey == nil && cfg.PublicKey == nil {
		return nil, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}
	return utils.VerifyConvertToken(token, cfg)
}

// readPart reads one multipart part, checking tok after every chunk.
func readPart(part io.Reader, buf []byte, limit int64, tok *cancellation.Token) ([]byte, error) {
	var data []byte
	for {
		n, err := part.Read(buf)
		if n > 0 {
			if int64(len(data)+n) > limit {
				return nil, errPartTooLarge
			}
			data = append(data, buf[:n]...)
		}
		if tok.Cancelled() {
			return nil, job.ErrCancelled
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// collectUpload streams the multipart body. Files over the size limit and
// uploads over the file count are rejected as soon as they are seen.
func collectUpload(r *http.Request, tok *cancellation.Token, maxFiles int, maxSize int64) (*upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest("expected multipart/form-data: %v", err)
	}

	u := &upload{}
	buf := make([]byte, uploadChunk)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}

		name := part.FormName()
		limit := int64(maxFieldSize)
		if name == "file" {
			if len(u.items) >= maxFiles {
				part.Close()
				return nil, badRequest("Maximum %d files allowed.", maxFiles)
			}
			limit = maxSize
		}

		data, err := readPart(part, buf, limit, tok)
		part.Close()
		if errors.Is(err, errPartTooLarge) {
			if name == "file" {
				return nil, badRequest("File %s exceeds the %s size limit.", part.FileName(), humanize.IBytes(uint64(maxSize)))
			}
			return nil, badRequest("field %s is too large", name)
		}
		if err != nil {
			return nil, readError(err)
		}

		if name == "file" {
			filename := part.FileName()
			if filename == "" {
				filename = "unknown"
			}
			u.items = append(u.items, models.Item{Index: len(u.items), Filename: filename, Data: data})
			logger.Debugf("received %s (%s)", filename, humanize.Bytes(uint64(len(data))))
			continue
		}
		if err := u.setField(name, strings.TrimSpace(string(data))); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &uploadError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
	}
	if errors.Is(err, job.ErrCancelled) {
		return err
	}
	return badRequest("malformed multipart body: %v", err)
}

func (u *upload) setField(name, value string) error {
	switch name {
	case "format":
		u.input.Format = value
	case "quality":
		v, err := optionalInt(name, value)
		if err != nil {
			return err
		}
		u.input.Quality = v
	case "compression":
		v, err := optionalInt(name, value)
		if err != nil {
			return err
		}
		u.input.Compression = v
	case "keep_aspect_ratio":
		u.input.KeepAspectRatio = value == "true" || value == "1"
	case "resolution":
		res, err := parseResolution(value)
		if err != nil {
			return err
		}
		u.input.Resolution = res
	case "archive":
		u.archive = value
	case "storage_key":
		u.storageKey = value
	case "sub_dir":
		u.subDir = value
	default:
		logger.Debugf("ignoring form field %q", name)
	}
	return nil
}

func optionalInt(name, value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, value)
	}
	return &v, nil
}

// parseResolution reads "width,height". Empty means keep the source size.
func parseResolution(value string) (*models.Resolution, error) {
	if value == "" {
		return nil, nil
	}
	w, h, ok := strings.Cut(value, ",")
	if !ok {
		return nil, badRequest("Invalid resolution format. Expected 'width,height'")
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil {
		return nil, badRequest("Invalid resolution format. Expected 'width,height'")
	}
	return &models.Resolution{Width: width, Height: height}, nil
}

// validate turns the collected fields into settings and an archive format.
func (u *upload) validate() (models.Settings, archive.Format, error) {
	if len(u.items) == 0 {
		return models.Settings{}, "", badRequest("no files uploaded")
	}
	if u.input.Format == "" {
		return models.Settings{}, "", badRequest("format is required")
	}

	allowed := config.GetAllowedFormats()
	format, err := models.ParseFormat(u.input.Format)
	if err != nil || !formatAllowed(format, allowed) {
		return models.Settings{}, "", badRequest("Format '%s' is not allowed. Allowed formats: %s", u.input.Format, strings.Join(allowed, ", "))
	}

	settings, err := models.NewSettings(u.input)
	if err != nil {
		return models.Settings{}, "", badRequest("%v", err)
	}

	name := u.archive
	if name == "" {
		name = config.GetDefaultArchiveFormat()
	}
	af, err := archive.ParseFormat(name)
	if err != nil {
		return models.Settings{}, "", badRequest("%v", err)
	}
	return settings, af, nil
}

func formatAllowed(f models.Format, allowed []string) bool {
	for _, name := range allowed {
		if a, err := models.ParseFormat(name); err == nil && a == f {
			return true
		}
	}
	return false
}

// deliveryFor takes publication targets from the token when there is one.
// Form values are honoured only when auth is disabled.
func deliveryFor(claims *models.ConvertClaims, u *upload) models.Delivery {
	if claims == nil {
		return models.Delivery{StorageKey: u.storageKey, SubDir: u.subDir}
	}
	return models.Delivery{
		StorageKey:      claims.StorageKey,
		SubDir:          claims.SubDir,
		CallbackURL:     claims.CompletionCallback,
		CallbackHeaders: claims.CallbackHeaders,
	}
}

// ConvertHandler accepts a multipart batch, converts it and answers with the
// archive. Progress goes to the websocket of ?session_id=.
func (s *Server) ConvertHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyJWT(r)
	if err != nil {
		logger.Warnf("Rejected convert request from %s: %v", r.RemoteAddr, err)
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	session := r.URL.Query().Get("session_id")
	tok, end := s.Cancels.Begin(session)
	defer end()

	s.Progress.Reset(session)
	s.Progress.Publish(session, progress.Event{Progress: progress.Upload, Label: "uploading"})

	maxFiles, maxSize := config.GetMaxFiles(), config.GetMaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*maxSize+formOverhead)

	up, err := collectUpload(r, tok, maxFiles, maxSize)
	if err != nil {
		s.fail(w, session, err)
		return
	}
	settings, archiveFormat, err := up.validate()
	if err != nil {
		s.fail(w, session, err)
		return
	}
	s.Progress.Publish(session, progress.Event{Progress: progress.Validated, Label: "validated"})

	j := models.Job{
		ID:        uuid.NewString(),
		SessionID: session,
		Items:     up.items,
		Settings:  settings,
		Delivery:  deliveryFor(claims, up),
	}
	s.States.Begin(j.ID, session)
	s.Progress.Publish(session, progress.Event{Progress: progress.Dispatch, Label: "processing"})

	coordinator := *s.Coordinator
	coordinator.Archive = archiveFormat
	out, err := coordinator.Run(r.Context(), j, tok)
	if err != nil {
		s.fail(w, session, err)
		return
	}

	w.Header().Set("Content-Type", out.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Archive)))
	w.Header().Set("X-Job-ID", out.JobID)
	if out.Location != "" {
		w.Header().Set("X-Archive-Location", out.Location)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Archive); err != nil {
		logger.Warnf("Failed to send archive for job %s: %v", out.JobID, err)
	}
}

type errorResponse struct {
	Error    string   `json:"error"`
	Kind     job.Kind `json:"kind,omitempty"`
	Filename string   `json:"filename,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, session string, err error) {
	var upErr *uploadError
	if errors.As(err, &upErr) {
		logger.Warnf("Rejected upload for session %s: %v", session, upErr)
		writeJSON(w, upErr.status, errorResponse{Error: upErr.msg})
		return
	}
	status := statusFor(err)
	if status == http.StatusConflict {
		writeJSON(w, status, errorResponse{Error: "Conversion canceled", Kind: job.KindCancelled})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: job.KindOf(err), Filename: job.FilenameOf(err)})
}

// statusFor maps a job failure to an HTTP status. Bad input is the client's
// fault; cancellation is a conflict with the running request.
func statusFor(err error) int {
	if errors.Is(err, job.ErrEmptyJob) || errors.Is(err, models.ErrInvalidSettings) {
		return http.StatusBadRequest
	}
	switch job.KindOf(err) {
	case job.KindUnsupported:
		return http.StatusBadRequest
	case job.KindDecode, job.KindResource:
		return http.StatusUnprocessableEntity
	case job.KindCancelled:
		return http.StatusConflict
	case job.KindPublish:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
