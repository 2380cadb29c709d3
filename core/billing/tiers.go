package billing

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/user"
)

// Unlimited marks a feature without a cap.
const Unlimited = -1

var (
	msgTotalReached  = "You’ve reached your plan’s newsletter limit. Upgrade to create more."
	msgActiveReached = "You already have the maximum number of active newsletters. Upgrade your plan to create another!"
	msgActivateLimit = "You’ve reached your active newsletter limit. Pause one to activate another."

	tierTag  = "tier"
	tierText = "invalid plan"
)

// Features are the limits of a tier.
type Features struct {
	MaxTotal       int `json:"max_total"`        // plans ever created (per kind)
	MaxActive      int `json:"max_active"`       // plans active at once (per kind)
	MaxStudyEmails int `json:"max_study_emails"` // lessons per study plan
}

type TierInfo struct {
	Name     string   `json:"name"`
	Rank     int      `json:"rank"`
	Features Features `json:"features"`
}

var (
	Tiers = []TierInfo{
		{Name: user.TierFree, Rank: 0, Features: Features{MaxTotal: 1, MaxActive: 1, MaxStudyEmails: 5}},
		{Name: user.TierPlus, Rank: 1, Features: Features{MaxTotal: Unlimited, MaxActive: 1, MaxStudyEmails: 30}},
		{Name: user.TierPro, Rank: 2, Features: Features{MaxTotal: Unlimited, MaxActive: Unlimited, MaxStudyEmails: Unlimited}},
	}
	// PaidTiers can be bought through checkout.
	PaidTiers = []string{user.TierPlus, user.TierPro}
)

// Tier returns the info of the named tier; unknown tiers are free.
func Tier(name string) TierInfo {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Tiers {
		if t.Name == name {
			return t
		}
	}
	return Tiers[0]
}

func FeaturesFor(usr user.User) Features { return Tier(usr.TierOrFree()).Features }

func reached(limit, count int) bool {
	return limit != Unlimited && count >= limit
}

// CheckCanCreate checks the user may create one more plan given their total and active counts.
func CheckCanCreate(usr user.User, total, active int) error {
	f := FeaturesFor(usr)
	if reached(f.MaxTotal, total) {
		return core.NewForbiddenError(msgTotalReached)
	}
	if reached(f.MaxActive, active) {
		return core.NewForbiddenError(msgActiveReached)
	}
	return nil
}

// CheckCanActivate checks the user may activate one more plan.
func CheckCanActivate(usr user.User, active int) error {
	if reached(FeaturesFor(usr).MaxActive, active) {
		return core.NewForbiddenError(msgActivateLimit)
	}
	return nil
}

// CapStudyEmails clamps requested lessons to the tier cap; requested <= 0 means "as many as topics".
func CapStudyEmails(usr user.User, requested, topics int) int {
	n := requested
	if n <= 0 {
		n = topics
	}
	if limit := FeaturesFor(usr).MaxStudyEmails; limit != Unlimited && n > limit {
		n = limit
	}
	return n
}

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(tierTag, core.OneOfValidation(PaidTiers...))
	core.RegisterCustomTranslation(validate, translator, tierTag, tierText)
}
