package classify

import "regexp"

type rule struct {
	intent    Intent
	pattern   *regexp.Regexp
	configKey string
	literal   string
}

func r(intent Intent, pattern string) rule {
	return rule{intent: intent, pattern: regexp.MustCompile(pattern)}
}

func keyed(intent Intent, key, pattern string) rule {
	return rule{intent: intent, pattern: regexp.MustCompile(pattern), configKey: key}
}

func literal(intent Intent, value, pattern string) rule {
	return rule{intent: intent, pattern: regexp.MustCompile(pattern), literal: value}
}

// prefix allows the usual lead-ins of a field label: "what is your", "your", "current".
const prefix = `^(?:(?:what is|what s|please enter|enter|provide) )?(?:your )?(?:current |legal |primary )?`

// directRules are tried in order against the normalized text; the first match wins.
// Patterns are anchored at the start so a field name mentioned inside a sentence
// ("authorized to work in this country") does not count as a direct field.
var directRules = []rule{
	r(PreferredName, prefix+`(?:preferred|nick) ?name\b`),
	r(FirstName, prefix+`(?:first|given|fore) ?names?\b`),
	r(LastName, prefix+`(?:last|family|sur) ?names?\b`),
	r(FullName, prefix+`(?:full )?name$|^full name\b`),
	r(Email, prefix+`e ?mail(?: address)?\b`),
	r(Phone, prefix+`(?:phone|mobile|cell|telephone)(?: number)?\b`),
	r(LinkedIn, prefix+`linkedin\b`),
	r(GitHub, prefix+`github\b`),
	r(Portfolio, prefix+`portfolio\b`),
	r(Website, prefix+`(?:personal )?(?:website|web site|homepage|blog)(?: url)?\b`),
	r(ZipCode, prefix+`(?:zip|postal)(?: ?code)?\b`),
	r(Address, prefix+`(?:street |home |mailing )?address(?: line 1)?$`),
	r(City, prefix+`city\b`),
	r(State, prefix+`(?:state|province|region)\b(?: province)?`),
	r(Country, prefix+`country\b`),
	r(Location, prefix+`location$|^where are you (?:located|based)\b`),
	r(CurrentCompany, prefix+`(?:employer|company)(?: name)?$`),
	r(CurrentTitle, prefix+`(?:job )?(?:title|position|role)$`),
	r(YearsExp, `\byears? of (?:professional |relevant |work )?experience\b|^how many years\b`),
	r(School, prefix+`(?:school|university|college|institution)(?: name)?$`),
	r(Degree, prefix+`(?:highest )?(?:degree|level of education|education level)\b`),
	r(FieldOfStudy, prefix+`(?:field of study|major|discipline)\b`),
	r(GraduationYear, `\bgraduation (?:year|date)\b|\byear of graduation\b`),
	r(GPA, `^(?:your )?(?:gpa|grade point average)\b`),
	r(Salary, `\b(?:salary|compensation|pay) (?:expectations?|requirements?)\b|\bexpected (?:salary|compensation)\b|\bdesired (?:salary|pay|compensation)\b|^(?:current )?salary$`),
	r(NoticePeriod, `\bnotice period\b`),
	r(StartDate, `\b(?:earliest |available |availability )?start date\b|\bwhen can you start\b`),
	r(Pronouns, `^(?:your )?(?:preferred )?pronouns?\b`),
}

// booleanRules only apply to questions that look like yes/no questions.
var booleanRules = []rule{
	keyed(Sponsorship, "sponsorship", `\b(?:visa )?sponsorship\b|\bsponsor\b|\bh ?1 ?b\b`),
	keyed(WorkAuthorization, "work-authorization", `\b(?:legally )?(?:authori[sz]ed|eligible|permitted) to work\b|\bright to work\b|\bwork (?:authori[sz]ation|permit)\b`),
	keyed(LegalAge, "legal-age", `\b(?:18|eighteen) (?:years|or older)\b|\blegal age\b|\bat least 18\b`),
	keyed(Relocation, "relocation", `\breloca`),
	keyed(Remote, "remote", `\bremote(?:ly)?\b|\bwork from home\b|\bhybrid\b|\bcome (?:in)?to the office\b`),
	keyed(BackgroundCheck, "background-check", `\bbackground (?:check|screening|investigation)\b`),
	keyed(DrugTest, "drug-test", `\bdrug (?:test|screen)`),
	keyed(PreviouslyEmployed, "previously-employed", `\b(?:previously|ever|formerly) (?:been )?(?:employed|worked)\b|\bworked (?:here|for us) before\b`),
	keyed(NonCompete, "non-compete", `\bnon ?compete\b|\bnon ?solicitation\b|\brestrictive covenant`),
	keyed(DriversLicense, "drivers-license", `\bdrivers? licen[cs]e\b|\bdriving licen[cs]e\b`),
	keyed(Travel, "travel", `\btravel\b`),
	keyed(SecurityClearance, "security-clearance", `\bsecurity clearance\b|\bclearance\b`),
	literal(Consent, "yes", `\b(?:i )?(?:agree|consent|acknowledge|accept|certify|confirm)\b.*\b(?:privacy|terms|policy|notice|true|accurate|processing|information)\b`),
}

// demographicRules apply to voluntary self-identification questions.
var demographicRules = []rule{
	r(Orientation, `\bsexual orientation\b|\blgbt`),
	r(Gender, `\bgender\b|\bsex\b|\bmale\b|\bfemale\b`),
	r(Ethnicity, `\bethnic|\brace\b|\bracial\b|\bhispanic\b|\blatino\b`),
	r(Veteran, `\bveteran\b|\bmilitary\b|\barmed forces\b`),
	r(Disability, `\bdisabilit|\bdisabled\b`),
}

var (
	yesNoRe = regexp.MustCompile(`^(?:are|do|does|have|has|will|would|can|could|is|did|were|may|should)\b|\b(?:authori[sz]ed|eligible|willing|agree|consent|acknowledge)\b`)
	eeoRe   = regexp.MustCompile(`\b(?:gender|sex|male|female|ethnic\w*|race|racial|hispanic|latino|veteran|military|armed forces|disabilit\w*|disabled|sexual orientation|lgbt\w*|self identif\w*|voluntary|equal employment|eeo)\b`)
)
