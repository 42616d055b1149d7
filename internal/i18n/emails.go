package i18n

import (
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	VerificationSubject string
	VerificationText    string
	VerificationHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		VerificationSubject: "Email Verification",
		VerificationText: "Please verify your email by clicking the following link:\n\n{link}\n\n" +
			"If you did not request this, please ignore this email.",
		VerificationHTML: "<p>Please verify your email by clicking the link below.</p>" +
			"<p><a href=\"{link}\">Verify email</a></p>" +
			"<p>If you did not request this, please ignore this email.</p>",

		PasswordResetSubject: "Password Reset",
		PasswordResetText: "You are receiving this because you (or someone else) requested a password reset for your account.\n\n" +
			"Please click on the following link, or paste it into your browser, to complete the process:\n\n{link}\n\n" +
			"The link expires in {hours} hour(s).\n" +
			"If you did not request this, please ignore this email and your password will remain unchanged.",
		PasswordResetHTML: "<p>You are receiving this because you (or someone else) requested a password reset for your account.</p>" +
			"<p><a href=\"{link}\">Reset password</a></p>" +
			"<p>The link expires in {hours} hour(s).</p>" +
			"<p>If you did not request this, ignore this email and your password will remain unchanged.</p>",
	},
	"de": {
		VerificationSubject: "E-Mail-Verifizierung",
		VerificationText: "Bitte bestätige deine E-Mail-Adresse über den folgenden Link:\n\n{link}\n\n" +
			"Wenn du das nicht angefordert hast, kannst du diese E-Mail ignorieren.",
		VerificationHTML: "<p>Bitte bestätige deine E-Mail-Adresse über den folgenden Link.</p>" +
			"<p><a href=\"{link}\">E-Mail bestätigen</a></p>" +
			"<p>Wenn du das nicht angefordert hast, kannst du diese E-Mail ignorieren.</p>",

		PasswordResetSubject: "Passwort zurücksetzen",
		PasswordResetText: "Du erhältst diese E-Mail, weil für dein Konto das Zurücksetzen des Passworts angefordert wurde.\n\n" +
			"Klicke auf den folgenden Link, um den Vorgang abzuschließen:\n\n{link}\n\n" +
			"Der Link läuft in {hours} Stunde(n) ab.\n" +
			"Wenn du das nicht angefordert hast, ignoriere diese E-Mail; dein Passwort bleibt unverändert.",
		PasswordResetHTML: "<p>Du erhältst diese E-Mail, weil für dein Konto das Zurücksetzen des Passworts angefordert wurde.</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Der Link läuft in {hours} Stunde(n) ab.</p>" +
			"<p>Wenn du das nicht angefordert hast, ignoriere diese E-Mail; dein Passwort bleibt unverändert.</p>",
	},
}

func stringsFor(locale string) emailStrings {
	if s, ok := emailTranslations[locale]; ok {
		return s
	}
	return emailTranslations[DefaultLocale]
}

func VerificationEmail(locale, link string) EmailContent {
	s := stringsFor(locale)
	replace := func(tpl string) string {
		return strings.ReplaceAll(tpl, "{link}", link)
	}
	return EmailContent{
		Subject: s.VerificationSubject,
		Text:    replace(s.VerificationText),
		HTML:    replace(s.VerificationHTML),
	}
}

func PasswordResetEmail(locale, link string, hours int) EmailContent {
	s := stringsFor(locale)
	replace := func(tpl string) string {
		tpl = strings.ReplaceAll(tpl, "{link}", link)
		return strings.ReplaceAll(tpl, "{hours}", strconv.Itoa(hours))
	}
	return EmailContent{
		Subject: s.PasswordResetSubject,
		Text:    replace(s.PasswordResetText),
		HTML:    replace(s.PasswordResetHTML),
	}
}
