package dashboard

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/timetable"
)

// pageData is the payload every template receives.
type pageData struct {
	User    *api.User
	Error   string
	Notice  string
	Form    map[string]string
	Mosques []api.Mosque
	Month   *api.MonthlyTimetable
	Offline bool
	Return  string
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render failed", "template", name, "error", err)
	}
}

func (s *Server) currentUser() *api.User {
	return s.sessions.Snapshot().User
}

// safeReturn keeps post-login redirects on this site. Anything absolute or
// protocol-relative is discarded.
func safeReturn(raw string) string {
	if raw == "" || raw[0] != '/' || (len(raw) > 1 && raw[1] == '/') {
		return "/dashboard"
	}
	if _, err := url.Parse(raw); err != nil {
		return "/dashboard"
	}
	return raw
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ret := safeReturn(r.URL.Query().Get("return_url"))
	if r.Method == http.MethodGet {
		s.render(w, "login", pageData{Return: ret})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := s.sessions.Login(r.Context(), api.Credentials{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	})
	if !res.OK {
		s.render(w, "login", pageData{
			Error:  res.Message,
			Form:   map[string]string{"email": r.FormValue("email")},
			Return: safeReturn(r.FormValue("return_url")),
		})
		return
	}
	http.Redirect(w, r, safeReturn(r.FormValue("return_url")), http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, "register", pageData{})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	form := api.RegisterForm{
		Username:  r.FormValue("username"),
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Phone:     r.FormValue("phone"),
	}
	res := s.sessions.Register(r.Context(), form)
	if !res.OK {
		s.render(w, "register", pageData{
			Error: res.Message,
			Form: map[string]string{
				"username":   form.Username,
				"email":      form.Email,
				"first_name": form.FirstName,
				"last_name":  form.LastName,
				"phone":      form.Phone,
			},
		})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sessions.Logout(r.Context())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData{User: s.currentUser()}
	favorites, err := s.client.FavoriteMosques(r.Context())
	if err != nil {
		s.logger.Warn("could not load favorites", "error", err)
	} else {
		data.Mosques = favorites
	}
	s.render(w, "dashboard", data)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, "profile", pageData{User: s.currentUser()})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update api.ProfileUpdate
	if v := r.FormValue("first_name"); v != "" {
		update.FirstName = &v
	}
	if v := r.FormValue("last_name"); v != "" {
		update.LastName = &v
	}
	if v := r.FormValue("phone"); v != "" {
		update.Phone = &v
	}
	if v := r.FormValue("email"); v != "" {
		update.Email = &v
	}

	res := s.sessions.UpdateProfile(r.Context(), update)
	data := pageData{User: s.currentUser()}
	if res.OK {
		data.Notice = "Profile updated."
	} else {
		data.Error = res.Message
	}
	s.render(w, "profile", data)
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.sessions.ChangePassword(r.Context(),
		r.FormValue("old_password"),
		r.FormValue("new_password"),
		r.FormValue("new_password_confirm"))

	data := pageData{User: s.currentUser()}
	if res.OK {
		data.Notice = "Password changed."
	} else {
		data.Error = res.Message
	}
	s.render(w, "profile", data)
}

func (s *Server) handleMosques(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("q")
	mosques, err := s.client.Mosques(r.Context(), search)
	data := pageData{User: s.currentUser(), Form: map[string]string{"q": search}}
	if err != nil {
		s.logger.Warn("mosque search failed", "error", err)
		data.Error = "Could not load mosques."
	} else {
		data.Mosques = mosques
	}
	s.render(w, "mosques", data)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.Atoi(r.FormValue("mosque_id"))
	if err != nil {
		http.Error(w, "bad mosque id", http.StatusBadRequest)
		return
	}
	if r.FormValue("action") == "remove" {
		err = s.client.RemoveFavorite(r.Context(), id)
	} else {
		err = s.client.AddFavorite(r.Context(), id)
	}
	if err != nil {
		s.logger.Warn("favorite toggle failed", "mosque", id, "error", err)
	}
	http.Redirect(w, r, "/mosques", http.StatusSeeOther)
}

func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := q.Get("location")
	if location == "" {
		location = s.location
	}
	now := time.Now()
	year, _ := strconv.Atoi(q.Get("year"))
	if year == 0 {
		year = now.Year()
	}
	month, _ := strconv.Atoi(q.Get("month"))
	if month < 1 || month > 12 {
		month = int(now.Month())
	}

	data := pageData{User: s.currentUser(), Form: map[string]string{"location": location}}
	if location == "" {
		data.Error = "Set a location to see prayer times."
		s.render(w, "timetable", data)
		return
	}

	tt, fromCache, err := timetable.Fetch(r.Context(), s.client, s.cache, location, year, month)
	if err != nil {
		s.logger.Warn("timetable fetch failed", "location", location, "error", err)
		data.Error = "Could not load the timetable."
		s.render(w, "timetable", data)
		return
	}
	data.Month = tt
	data.Offline = fromCache
	s.render(w, "timetable", data)
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	s.render(w, "unauthorized", pageData{User: s.currentUser()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
