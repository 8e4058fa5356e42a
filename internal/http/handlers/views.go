package handlers

import (
	"lookbook/internal/domain"
	"lookbook/internal/studio"
)

type itemView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	PreviewURL string `json:"preview_url"`
	ResultURL  string `json:"result_url,omitempty"`
	Width      int    `json:"result_width,omitempty"`
	Height     int    `json:"result_height,omitempty"`
	Error      string `json:"error,omitempty"`
}

type genderOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type paramsView struct {
	Gender      string         `json:"gender"`
	GenderLabel string         `json:"gender_label"`
	Remarks     string         `json:"remarks"`
	Options     []genderOption `json:"gender_options"`
}

type sessionView struct {
	Items              []itemView `json:"items"`
	Count              int        `json:"count"`
	Params             paramsView `json:"params"`
	BatchActive        bool       `json:"batch_active"`
	CanGenerate        bool       `json:"can_generate"`
	CanDownloadAll     bool       `json:"can_download_all"`
	CredentialVerified bool       `json:"credential_verified"`
	LastBatchError     string     `json:"last_batch_error,omitempty"`
}

func newItemView(it domain.Item) itemView {
	v := itemView{
		ID:         it.ID,
		Name:       it.Source.Name,
		Status:     string(it.Status),
		PreviewURL: it.Source.PreviewURL,
		Error:      it.Error,
	}
	if it.HasResult() {
		v.ResultURL = it.Result.URL
		v.Width = it.Result.Width
		v.Height = it.Result.Height
	}
	return v
}

func newParamsView(p domain.Params) paramsView {
	options := make([]genderOption, 0, len(domain.Genders))
	for _, g := range domain.Genders {
		options = append(options, genderOption{ID: string(g), Label: g.Label()})
	}
	return paramsView{Gender: string(p.Gender), GenderLabel: p.Gender.Label(), Remarks: p.Remarks, Options: options}
}

func newSessionView(st studio.State) sessionView {
	items := make([]itemView, 0, len(st.Items))
	for _, it := range st.Items {
		items = append(items, newItemView(it))
	}
	return sessionView{
		Items:              items,
		Count:              len(items),
		Params:             newParamsView(st.Params),
		BatchActive:        st.BatchActive,
		CanGenerate:        st.CanGenerate,
		CanDownloadAll:     st.CanDownloadAll,
		CredentialVerified: st.CredentialVerified,
		LastBatchError:     st.LastBatchError,
	}
}
