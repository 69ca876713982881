package assessment

// localeMap maps short language codes to speech-service locale codes.
var localeMap = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
	"pt": "pt-BR",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"zh": "zh-CN",
	"ar": "ar-SA",
}

func toLocale(code string) string {
	if locale, ok := localeMap[code]; ok {
		return locale
	}
	return code
}
