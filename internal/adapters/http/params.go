package httpadapter

import (
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type advanceParams struct {
	BudgetMs *int
	HotNews  *bool
}

type retryParams struct {
	FromScratch *bool
}

type reportParams struct {
	Limit  *int
	Status *[]string
}

func bindSubmissionID(r *http.Request) (string, error) {
	var id string
	if err := runtime.BindStyledParameterWithLocation("simple", false, "id", runtime.ParamLocationPath, r.PathValue("id"), &id); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind id", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind id", errMissingID)
	}
	return id, nil
}

func bindAdvanceParams(r *http.Request) (advanceParams, error) {
	var p advanceParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "budget_ms", q, &p.BudgetMs); err != nil {
		return p, domain.WrapError(domain.ErrInvalidInput, "bind budget_ms", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "hot_news", q, &p.HotNews); err != nil {
		return p, domain.WrapError(domain.ErrInvalidInput, "bind hot_news", err)
	}
	return p, nil
}

func (p advanceParams) options() domain.AdvanceOptions {
	var opts domain.AdvanceOptions
	if p.BudgetMs != nil {
		opts.Budget = time.Duration(*p.BudgetMs) * time.Millisecond
	}
	if p.HotNews != nil {
		opts.HotNews = *p.HotNews
	}
	return opts
}

func bindRetryParams(r *http.Request) (retryParams, error) {
	var p retryParams
	if err := runtime.BindQueryParameter("form", true, false, "from_scratch", r.URL.Query(), &p.FromScratch); err != nil {
		return p, domain.WrapError(domain.ErrInvalidInput, "bind from_scratch", err)
	}
	return p, nil
}

func bindLimit(r *http.Request) (int, error) {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bind limit", err)
	}
	if limit == nil {
		return 0, nil
	}
	return *limit, nil
}

func bindReportParams(r *http.Request) (reportParams, error) {
	var p reportParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return p, domain.WrapError(domain.ErrInvalidInput, "bind limit", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "status", q, &p.Status); err != nil {
		return p, domain.WrapError(domain.ErrInvalidInput, "bind status", err)
	}
	return p, nil
}

func (p reportParams) statuses() []domain.SubmissionStatus {
	if p.Status == nil {
		return nil
	}
	out := make([]domain.SubmissionStatus, 0, len(*p.Status))
	for _, s := range *p.Status {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, domain.SubmissionStatus(s))
		}
	}
	return out
}
