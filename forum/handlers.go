// forum/handlers.go
package forum

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/sirupsen/logrus"
)

// Options tune the handlers; zero values get sensible defaults.
type Options struct {
	BcryptCost      int
	SessionLifetime time.Duration
	CookieSecure    bool
}

type Handlers struct {
	store    Store
	accounts *Accounts
	views    *Views
	Session  *scs.SessionManager
}

func NewHandlers(store Store, opts Options) (*Handlers, error) {
	views, err := NewViews()
	if err != nil {
		return nil, err
	}
	sm := scs.New()
	if opts.SessionLifetime > 0 {
		sm.Lifetime = opts.SessionLifetime
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = opts.CookieSecure
	sm.Cookie.SameSite = http.SameSiteLaxMode
	return &Handlers{
		store:    store,
		accounts: NewAccounts(store, opts.BcryptCost),
		views:    views,
		Session:  sm,
	}, nil
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /about", h.about)
	mux.HandleFunc("GET /categories", h.listCategories)
	mux.HandleFunc("GET /c/{id}", h.showCategory)
	mux.Handle("GET /c/{id}/new", RequireAuth(http.HandlerFunc(h.newTopicForm)))
	mux.Handle("POST /c/{id}/new", RequireAuth(http.HandlerFunc(h.createTopic)))
	mux.HandleFunc("GET /t/{id}", h.showTopic)
	mux.Handle("GET /t/{id}/reply", RequireAuth(http.HandlerFunc(h.replyForm)))
	mux.Handle("POST /t/{id}/reply", RequireAuth(http.HandlerFunc(h.createReply)))
	mux.HandleFunc("GET /report", h.reportForm)
	mux.HandleFunc("POST /report", h.createReport)
	mux.HandleFunc("GET /reports", h.listReports)
	mux.HandleFunc("GET /register", h.registerForm)
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("GET /login", h.loginForm)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
}

// Handler returns the full middleware stack around the routes.
func (h *Handlers) Handler(logger logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Chain(mux,
		RequestLogger(logger),
		SecureHeaders,
		h.Session.LoadAndSave,
		AttachUser(h.Session),
	)
}

func page(r *http.Request) Page {
	return Page{User: UserFromContext(r.Context())}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := h.views.Render(w, status, name, data); err != nil {
		h.serverError(w, r, fmt.Errorf("render %s: %w", name, err))
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	LoggerFromContext(r.Context()).WithError(err).Error("request failed")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// lookupCategory writes the 404 itself; callers just return on false.
func (h *Handlers) lookupCategory(w http.ResponseWriter, r *http.Request) (*Category, bool) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Category not found", http.StatusNotFound)
		return nil, false
	}
	category, err := h.store.GetCategory(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Category not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, fmt.Errorf("get category %d: %w", id, err))
		return nil, false
	}
	return category, true
}

func (h *Handlers) lookupTopic(w http.ResponseWriter, r *http.Request) (*Topic, bool) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return nil, false
	}
	topic, err := h.store.GetTopic(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, fmt.Errorf("get topic %d: %w", id, err))
		return nil, false
	}
	return topic, true
}

// --- Forum ---

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		h.serverError(w, r, fmt.Errorf("list categories: %w", err))
		return
	}
	latest, err := h.store.LatestTopics(ctx, LatestTopicsLimit)
	if err != nil {
		h.serverError(w, r, fmt.Errorf("latest topics: %w", err))
		return
	}
	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.serverError(w, r, fmt.Errorf("stats: %w", err))
		return
	}
	h.render(w, r, http.StatusOK, "index.html", HomeView{
		Page:         page(r),
		Categories:   categories,
		LatestTopics: latest,
		Stats:        stats,
	})
}

// about reuses the home page with nothing in it.
func (h *Handlers) about(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", HomeView{Page: page(r)})
}

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.serverError(w, r, fmt.Errorf("list categories: %w", err))
		return
	}
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.serverError(w, r, fmt.Errorf("stats: %w", err))
		return
	}
	h.render(w, r, http.StatusOK, "categories.html", CategoriesView{Page: page(r), Categories: categories, Stats: stats})
}

func (h *Handlers) showCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := h.lookupCategory(w, r)
	if !ok {
		return
	}
	topics, err := h.store.TopicsByCategory(r.Context(), category.ID)
	if err != nil {
		h.serverError(w, r, fmt.Errorf("topics for category %d: %w", category.ID, err))
		return
	}
	h.render(w, r, http.StatusOK, "category.html", CategoryView{Page: page(r), Category: *category, Topics: topics})
}

func (h *Handlers) newTopicForm(w http.ResponseWriter, r *http.Request) {
	category, ok := h.lookupCategory(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "new-topic.html", NewTopicView{Page: page(r), Category: *category})
}

func (h *Handlers) createTopic(w http.ResponseWriter, r *http.Request) {
	category, ok := h.lookupCategory(w, r)
	if !ok {
		return
	}
	form := ParseTopicForm(r)
	if err := form.Validate(); err != nil {
		h.render(w, r, http.StatusOK, "new-topic.html", NewTopicView{
			Page:     page(r),
			Category: *category,
			Form:     form,
			Error:    formMessage(err),
		})
		return
	}

	user := UserFromContext(r.Context())
	topic := &Topic{CategoryID: category.ID, UserID: user.ID, Title: form.Title}
	opener := &Post{UserID: user.ID, Content: form.Content}
	if err := h.store.CreateTopic(r.Context(), topic, opener); err != nil {
		h.serverError(w, r, fmt.Errorf("create topic: %w", err))
		return
	}
	LoggerFromContext(r.Context()).WithFields(logrus.Fields{
		"topic_id":    topic.ID,
		"category_id": category.ID,
		"user_id":     user.ID,
	}).Info("topic created")
	http.Redirect(w, r, fmt.Sprintf("/t/%d", topic.ID), http.StatusSeeOther)
}

func (h *Handlers) showTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.lookupTopic(w, r)
	if !ok {
		return
	}
	posts, err := h.store.PostsByTopic(r.Context(), topic.ID)
	if err != nil {
		h.serverError(w, r, fmt.Errorf("posts for topic %d: %w", topic.ID, err))
		return
	}
	h.render(w, r, http.StatusOK, "thread.html", ThreadView{Page: page(r), Topic: *topic, Posts: posts})
}

func (h *Handlers) replyForm(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.lookupTopic(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "reply.html", ReplyView{Page: page(r), Topic: *topic})
}

func (h *Handlers) createReply(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.lookupTopic(w, r)
	if !ok {
		return
	}
	form := ParseReplyForm(r)
	if err := form.Validate(); err != nil {
		h.render(w, r, http.StatusOK, "reply.html", ReplyView{
			Page:  page(r),
			Topic: *topic,
			Form:  form,
			Error: formMessage(err),
		})
		return
	}

	user := UserFromContext(r.Context())
	post := &Post{TopicID: topic.ID, UserID: user.ID, Content: form.Content}
	err := h.store.CreateReply(r.Context(), post)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, fmt.Errorf("create reply: %w", err))
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/t/%d", topic.ID), http.StatusSeeOther)
}

// --- Sightings ---

func (h *Handlers) reportForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "report.html", ReportFormView{
		Page:   page(r),
		Values: SightingForm{ReportType: string(ReportGhost)},
	})
}

func (h *Handlers) createReport(w http.ResponseWriter, r *http.Request) {
	form := ParseSightingForm(r)
	if err := form.Validate(); err != nil {
		h.render(w, r, http.StatusBadRequest, "report.html", ReportFormView{
			Page:   page(r),
			Values: form,
			Error:  formMessage(err),
		})
		return
	}
	sighting := form.Sighting()
	if err := h.store.CreateSighting(r.Context(), sighting); err != nil {
		h.serverError(w, r, fmt.Errorf("create sighting: %w", err))
		return
	}
	LoggerFromContext(r.Context()).WithFields(logrus.Fields{
		"sighting_id": sighting.ID,
		"report_type": sighting.ReportType,
	}).Info("sighting reported")
	http.Redirect(w, r, "/reports?submitted=1", http.StatusSeeOther)
}

func (h *Handlers) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.RecentSightings(r.Context(), RecentReportLimit)
	if err != nil {
		h.serverError(w, r, fmt.Errorf("recent sightings: %w", err))
		return
	}
	h.render(w, r, http.StatusOK, "reports.html", ReportsView{
		Page:      page(r),
		Reports:   reports,
		Submitted: r.URL.Query().Get("submitted") == "1",
	})
}

// --- Accounts ---

func (h *Handlers) registerForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", AccountView{Page: page(r)})
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	form := ParseRegisterForm(r)
	user, err := h.accounts.Register(r.Context(), form)
	var formErr *FormError
	if errors.As(err, &formErr) {
		h.render(w, r, http.StatusOK, "register.html", AccountView{
			Page:     page(r),
			Username: form.Username,
			Email:    form.Email,
			Error:    formErr.Message,
		})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := h.startSession(r, user); err != nil {
		h.serverError(w, r, err)
		return
	}
	LoggerFromContext(r.Context()).WithField("user_id", user.ID).Info("user registered")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", AccountView{Page: page(r)})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Login(r.Context(), ParseLoginForm(r))
	if errors.Is(err, ErrInvalidCredentials) {
		h.render(w, r, http.StatusOK, "login.html", AccountView{Page: page(r), Error: msgBadCredentials})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := h.startSession(r, user); err != nil {
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Destroy(r.Context()); err != nil {
		h.serverError(w, r, fmt.Errorf("destroy session: %w", err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startSession renews the token before storing the user to avoid fixation.
func (h *Handlers) startSession(r *http.Request, user *User) error {
	if err := h.Session.RenewToken(r.Context()); err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	h.Session.Put(r.Context(), sessionUserKey, user.SessionUser())
	return nil
}

func formMessage(err error) string {
	var formErr *FormError
	if errors.As(err, &formErr) {
		return formErr.Message
	}
	return msgInvalidFormInput
}
