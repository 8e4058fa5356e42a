package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lookbook/internal/media"
)

type rejectionView struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func (a *App) UploadItems(w http.ResponseWriter, r *http.Request) {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "files required")
		return
	}
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		files = append(files, media.File{Name: fh.Filename, Data: data})
	}

	added, rejected := a.Studio.AddFiles(files)
	resp := struct {
		Items    []itemView      `json:"items"`
		Rejected []rejectionView `json:"rejected"`
	}{Items: make([]itemView, 0, len(added)), Rejected: make([]rejectionView, 0, len(rejected))}
	for _, it := range added {
		resp.Items = append(resp.Items, newItemView(it))
	}
	for _, rj := range rejected {
		resp.Rejected = append(resp.Rejected, rejectionView{Name: rj.Name, Error: rj.Err.Error()})
	}
	code := http.StatusCreated
	if len(added) == 0 {
		code = http.StatusUnsupportedMediaType
	}
	a.json(w, code, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (a *App) DeleteItem(w http.ResponseWriter, r *http.Request) {
	a.Studio.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ItemPreview(w http.ResponseWriter, r *http.Request) {
	data, mime, err := a.Studio.Preview(chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	writeImage(w, mime, data)
}

func (a *App) ItemResult(w http.ResponseWriter, r *http.Request) {
	name, res, err := a.Studio.Result(chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeImage(w, res.MIME, res.Data)
}

func writeImage(w http.ResponseWriter, mime string, data []byte) {
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
