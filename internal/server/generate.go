package server

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/yourorg/featuregen/internal/generator"
	"github.com/yourorg/featuregen/pkg/types"
)

const maxUploadBytes = 10 << 20

// legacyDecoders are tried in order when an upload is not valid UTF-8.
var legacyDecoders = []struct {
	name string
	enc  encoding.Encoding
}{
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeUpload turns uploaded bytes into text. UTF-8 (with or without a
// byte order mark) is taken as is; other inputs are decoded as single-byte
// legacy encodings, and as a last resort invalid bytes are dropped.
func decodeUpload(data []byte) (string, string) {
	if utf8.Valid(data) {
		if bytes.HasPrefix(data, utf8BOM) {
			return string(data[len(utf8BOM):]), "utf-8-sig"
		}
		return string(data), "utf-8"
	}
	for _, d := range legacyDecoders {
		out, err := d.enc.NewDecoder().Bytes(data)
		if err == nil && utf8.Valid(out) {
			return string(out), d.name
		}
	}
	return strings.ToValidUTF8(string(data), ""), "utf-8-ignore"
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

// requirementText returns the requirement field, or the uploaded file's
// text when the field is empty.
func (s *Server) requirementText(r *http.Request) (string, error) {
	if req := r.FormValue("requirement"); strings.TrimSpace(req) != "" {
		return req, nil
	}
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %v", errBadRequest, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %v", errBadRequest, err)
	}
	text, enc := decodeUpload(data)
	s.logger.Info("requirement file loaded", "filename", header.Filename, "encoding", enc, "chars", utf8.RuneCountInString(text))
	return text, nil
}

func apiContextFromForm(r *http.Request) types.APIContext {
	return types.APIContext{
		Endpoint:      strings.TrimSpace(r.FormValue("apiEndpoint")),
		Method:        strings.TrimSpace(r.FormValue("apiMethod")),
		AuthType:      types.AuthType(strings.ToLower(strings.TrimSpace(r.FormValue("authType")))),
		Username:      r.FormValue("username"),
		Password:      r.FormValue("password"),
		Token:         r.FormValue("token"),
		Payload:       r.FormValue("payload"),
		ResourceID:    r.FormValue("resourceId"),
		AcceptHeader:  r.FormValue("acceptHeader"),
		CustomHeaders: r.FormValue("customHeaders"),
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	text, err := s.requirementText(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	apiCtx := apiContextFromForm(r)
	s.logger.Info("generate requested",
		"operation", r.FormValue("operation"),
		"endpoint", apiCtx.Endpoint,
		"auth", apiCtx.AuthLabel(),
		"chars", utf8.RuneCountInString(text))

	res, err := s.gen.Generate(r.Context(), generator.Request{
		Requirement: text,
		APIContext:  apiCtx,
		Operation:   r.FormValue("operation"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
