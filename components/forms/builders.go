// components/forms/builders.go
//
// Result builders, keyed by form ID.
//
// A builder runs after a submission passes validation and produces the
// success payload.  Forms without a builder answer {"message": ...}.
//
//   crop-yield – production ÷ area in tonnes per hectare, plus a rainfall
//                note from the crop calendar.
//   crop-plan  – the season’s best rainfall match from the calendar and a
//                growing guide.
//   labour-job – a job ID; the store action persists the post.
//   feedback   – a thank-you note; the store action keeps the message.
//   register   – account creation.
//   login      – credential check, refresh cookie, and access token.
//
//------------------------------------------------------------------------------

package forms

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/agriportal/internal/account"
	"github.com/yanizio/agriportal/internal/calendar"
	"github.com/yanizio/agriportal/internal/form"
	"github.com/yanizio/agriportal/internal/session"
)

type builder func(w http.ResponseWriter, r *http.Request, def *form.Definition, vals form.Values, payload map[string]any) (int, map[string]any, error)

func (c *Component) defaultBuilders() map[string]builder {
	return map[string]builder{
		"crop-yield": cropYield,
		"crop-plan":  cropPlan,
		"labour-job": labourJob,
		"feedback":   feedback,
		"register":   c.register,
		"login":      c.login,
	}
}

func num(p map[string]any, key string) (float64, bool) {
	v, ok := p[key].(float64)
	return v, ok
}

func str(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

/*──────────────────────────── crop yield ──────────────────────────────────*/

func cropYield(_ http.ResponseWriter, _ *http.Request, _ *form.Definition, _ form.Values, p map[string]any) (int, map[string]any, error) {
	area, _ := num(p, "area")
	production, _ := num(p, "production")
	if area <= 0 {
		return 0, nil, form.ValidationError{Result: form.ResultFrom(
			map[string]string{"area": "Area must be greater than zero."}, nil)}
	}

	out := map[string]any{
		"prediction": round2(production / area),
		"unit":       "tonnes/hectare",
	}
	if crop := str(p, "crop"); crop != "" {
		out["crop"] = crop
		if note := rainfallNote(crop, p); note != "" {
			out["notes"] = note
		}
	}
	return http.StatusOK, out, nil
}

// rainfallNote compares reported rainfall with the calendar range.
func rainfallNote(crop string, p map[string]any) string {
	c, ok := calendar.Default.Find(crop)
	if !ok {
		return ""
	}
	rain, ok := num(p, "rainfall")
	if !ok {
		return ""
	}
	switch {
	case rain < float64(c.RainfallMin):
		return fmt.Sprintf("Rainfall of %s mm is **below** the %d–%d mm range %s prefers; plan for irrigation.",
			form.FormatNumber(rain), c.RainfallMin, c.RainfallMax, c.Name)
	case rain > float64(c.RainfallMax):
		return fmt.Sprintf("Rainfall of %s mm is **above** the %d–%d mm range %s prefers; check field drainage.",
			form.FormatNumber(rain), c.RainfallMin, c.RainfallMax, c.Name)
	}
	return fmt.Sprintf("Rainfall is within the %d–%d mm range %s prefers.", c.RainfallMin, c.RainfallMax, c.Name)
}

/*──────────────────────────── crop plan ───────────────────────────────────*/

func cropPlan(_ http.ResponseWriter, _ *http.Request, _ *form.Definition, _ form.Values, p map[string]any) (int, map[string]any, error) {
	season := calendar.Season(str(p, "Season"))
	rain, _ := num(p, "Rainfall")

	best, ok := recommend(calendar.Default.ForSeason(season), rain)
	if !ok {
		return 0, nil, &apiError{http.StatusUnprocessableEntity, "No crop in the calendar matches that season."}
	}
	return http.StatusOK, map[string]any{
		"crop":  best.Name,
		"guide": guideFor(best, p),
	}, nil
}

// recommend picks the candidate whose rainfall range is nearest rain; ties
// keep calendar order.
func recommend(cands []calendar.Crop, rain float64) (calendar.Crop, bool) {
	var (
		best  calendar.Crop
		score = math.Inf(1)
	)
	for _, c := range cands {
		var d float64
		switch {
		case rain < float64(c.RainfallMin):
			d = float64(c.RainfallMin) - rain
		case rain > float64(c.RainfallMax):
			d = rain - float64(c.RainfallMax)
		}
		if d < score {
			best, score = c, d
		}
	}
	return best, !math.IsInf(score, 1)
}

func monthName(m int) string { return time.Month(m).String() }

func guideFor(c calendar.Crop, p map[string]any) map[string]any {
	soil := strings.ToLower(str(p, "Soil_Type"))
	irrigation := strings.ToLower(str(p, "Irrigation_Method"))

	plant := fmt.Sprintf("Prepare %s soil with one deep ploughing and two harrowings, then sow in rows.", soil)
	if irrigation != "" {
		plant += fmt.Sprintf("\nSchedule **%s** irrigation at sowing and at each critical growth stage.", irrigation)
	}
	if pest := str(p, "Pest_Issue"); pest != "" && !strings.EqualFold(pest, "None") {
		plant += fmt.Sprintf("\nScout weekly for **%s** and treat at the first sign of damage.", strings.ToLower(pest))
	}

	fert := "Apply a balanced NPK basal dose and top-dress nitrogen after establishment."
	if used := str(p, "Fertilizer_Used"); used != "" {
		fert = fmt.Sprintf("You reported using %s.  %s", used, fert)
	}
	if ph, ok := num(p, "pH"); ok {
		switch {
		case ph < 5.5:
			fert += "\nSoil is **acidic**; lime before sowing."
		case ph > 8:
			fert += "\nSoil is **alkaline**; add gypsum and organic matter."
		}
	}

	post := "Dry the harvest to safe moisture, grade it, and store off the ground in a ventilated shed."
	if strings.EqualFold(str(p, "Market_Demand"), "High") {
		post += "\nDemand is **high**; sell soon after harvest rather than storing long."
	}

	return map[string]any{
		"title":          "Growing Guide for " + c.Name,
		"timeline":       fmt.Sprintf("**Sowing:** %s\n**Harvest:** %s", monthName(c.Sowing), monthName(c.Harvesting)),
		"how_to_plant":   plant,
		"fertilizer":     fert,
		"ideal_rainfall": fmt.Sprintf("%d–%d mm", c.RainfallMin, c.RainfallMax),
		"post_harvest":   post,
	}
}

/*──────────────────────────── labour job ──────────────────────────────────*/

func labourJob(_ http.ResponseWriter, _ *http.Request, _ *form.Definition, _ form.Values, p map[string]any) (int, map[string]any, error) {
	people, _ := num(p, "peopleCount")
	return http.StatusCreated, map[string]any{
		"job_id": uuid.NewString(),
		"message": fmt.Sprintf("%s: %s labourers needed at %s on %s.",
			str(p, "workType"), form.FormatNumber(people), str(p, "village"), str(p, "date")),
	}, nil
}

/*──────────────────────────── feedback ────────────────────────────────────*/

func feedback(_ http.ResponseWriter, _ *http.Request, _ *form.Definition, _ form.Values, p map[string]any) (int, map[string]any, error) {
	return http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Thank you for your feedback, %s.", str(p, "name")),
	}, nil
}

/*──────────────────────────── accounts ────────────────────────────────────*/

var errNoAccounts = &apiError{http.StatusServiceUnavailable, "Accounts are unavailable right now."}

func (c *Component) register(_ http.ResponseWriter, r *http.Request, _ *form.Definition, _ form.Values, p map[string]any) (int, map[string]any, error) {
	if c.accounts == nil {
		return 0, nil, errNoAccounts
	}
	u, err := c.accounts.Register(r.Context(), account.Registration{
		Username: str(p, "username"),
		Email:    str(p, "email"),
		Password: str(p, "password"),
		Role:     str(p, "role"),
	})
	if errors.Is(err, account.ErrEmailTaken) {
		return 0, nil, &account.FieldError{Field: "email", Message: "User with this email already exists"}
	}
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, map[string]any{
		"message":  "User registered successfully",
		"username": u.Username,
		"role":     string(u.Role),
	}, nil
}

func (c *Component) login(w http.ResponseWriter, r *http.Request, _ *form.Definition, _ form.Values, p map[string]any) (int, map[string]any, error) {
	if c.accounts == nil {
		return 0, nil, errNoAccounts
	}
	sess, err := c.accounts.Login(r.Context(), str(p, "email"), str(p, "password"))
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		return 0, nil, &apiError{http.StatusBadRequest, "Invalid email or password"}
	case errors.Is(err, account.ErrInactive):
		return 0, nil, &apiError{http.StatusForbidden, "This account is disabled."}
	case err != nil:
		return 0, nil, err
	}
	session.SetRefresh(w, r, sess.RefreshToken, c.accounts.Tokens().RefreshTTL(), c.secure)
	return http.StatusOK, map[string]any{
		"message":     "Welcome back, " + sess.User.Username + ".",
		"accessToken": sess.AccessToken,
		"username":    sess.User.Username,
	}, nil
}
