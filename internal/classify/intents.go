// Package classify maps a canonical question onto a tier, an intent and the resolver that answers it.
package classify

// Intent is one concept from the closed question vocabulary.
type Intent string

// Tier 1: facts read straight from the profile.
const (
	FirstName      Intent = "firstName"
	LastName       Intent = "lastName"
	FullName       Intent = "fullName"
	PreferredName  Intent = "preferredName"
	Email          Intent = "email"
	Phone          Intent = "phone"
	Address        Intent = "address"
	City           Intent = "city"
	State          Intent = "state"
	Country        Intent = "country"
	ZipCode        Intent = "zipCode"
	Location       Intent = "location"
	LinkedIn       Intent = "linkedin"
	GitHub         Intent = "github"
	Portfolio      Intent = "portfolio"
	Website        Intent = "website"
	CurrentCompany Intent = "currentCompany"
	CurrentTitle   Intent = "currentTitle"
	YearsExp       Intent = "yearsExperience"
	School         Intent = "school"
	Degree         Intent = "degree"
	FieldOfStudy   Intent = "fieldOfStudy"
	GraduationYear Intent = "graduationYear"
	GPA            Intent = "gpa"
	Salary         Intent = "salary"
	NoticePeriod   Intent = "noticePeriod"
	StartDate      Intent = "startDate"
	Pronouns       Intent = "pronouns"
)

// Tier 2: yes/no questions answered by a rule.
const (
	WorkAuthorization  Intent = "workAuthorization"
	Sponsorship        Intent = "sponsorship"
	Relocation         Intent = "relocation"
	Remote             Intent = "remote"
	LegalAge           Intent = "legalAge"
	BackgroundCheck    Intent = "backgroundCheck"
	DrugTest           Intent = "drugTest"
	PreviouslyEmployed Intent = "previouslyEmployed"
	NonCompete         Intent = "nonCompete"
	DriversLicense     Intent = "driversLicense"
	Travel             Intent = "travel"
	SecurityClearance  Intent = "securityClearance"
	Consent            Intent = "consent"
)

// Tier 3: voluntary self-identification.
const (
	Gender      Intent = "gender"
	Ethnicity   Intent = "ethnicity"
	Veteran     Intent = "veteran"
	Disability  Intent = "disability"
	Orientation Intent = "orientation"
)

// Unknown is the Tier 4 intent: nothing deterministic matched.
const Unknown Intent = "unknown"

// Resolver names the resolution strategy for a classification.
type Resolver string

const (
	Direct      Resolver = "direct"
	BooleanRule Resolver = "boolean-rule"
	Demographic Resolver = "demographic"
	Generative  Resolver = "generative"
)

// Classification is derived data, recomputed for every question.
type Classification struct {
	Tier     int      `json:"tier"`
	Intent   Intent   `json:"intent"`
	Resolver Resolver `json:"resolver"`
	// ConfigKey is the profile setting consulted by boolean rules.
	ConfigKey string `json:"config_key,omitempty"`
	// Literal is a fixed answer that wins over any setting.
	Literal string `json:"literal,omitempty"`
}
