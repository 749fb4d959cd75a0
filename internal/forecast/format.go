package forecast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smartcity/predictor/internal/domain"
)

type formatLabels struct {
	header      string
	unavailable string
	average     string
	precip      string
	wind        string
	target      string
	noData      string
	code        string
}

var labels = map[domain.Language]formatLabels{
	domain.LangRussian: {
		header:      "Прогноз погоды Open-Meteo (реальные данные):",
		unavailable: "Прогноз погоды: недоступен",
		average:     "ср.",
		precip:      "осадки %sмм",
		wind:        "ветер до %s км/ч",
		target:      "← ЦЕЛЕВАЯ ДАТА",
		noData:      "нет данных",
		code:        "код %d",
	},
	domain.LangEnglish: {
		header:      "Open-Meteo weather forecast (live data):",
		unavailable: "Weather forecast: unavailable",
		average:     "avg",
		precip:      "precipitation %s mm",
		wind:        "wind up to %s km/h",
		target:      "← TARGET DATE",
		noData:      "no data",
		code:        "code %d",
	},
	domain.LangKazakh: {
		header:      "Open-Meteo ауа райы болжамы (нақты деректер):",
		unavailable: "Ауа райы болжамы: қолжетімсіз",
		average:     "орт.",
		precip:      "жауын-шашын %s мм",
		wind:        "жел %s км/сағ дейін",
		target:      "← МАҚСАТТЫ КҮН",
		noData:      "дерек жоқ",
		code:        "код %d",
	},
}

// weatherCodes maps WMO weather interpretation codes to localized text
var weatherCodes = map[domain.Language]map[int]string{
	domain.LangRussian: {
		0: "Ясно", 1: "Малооблачно", 2: "Облачно", 3: "Пасмурно",
		45: "Туман", 48: "Изморозь",
		51: "Морось", 53: "Морось", 55: "Сильная морось",
		61: "Дождь", 63: "Умеренный дождь", 65: "Сильный дождь",
		71: "Снег", 73: "Умеренный снег", 75: "Сильный снег",
		77: "Снежные зёрна", 80: "Ливень", 81: "Сильный ливень",
		85: "Снегопад", 86: "Сильный снегопад",
		95: "Гроза", 96: "Гроза с градом",
	},
	domain.LangEnglish: {
		0: "Clear", 1: "Mostly clear", 2: "Partly cloudy", 3: "Overcast",
		45: "Fog", 48: "Rime fog",
		51: "Drizzle", 53: "Drizzle", 55: "Heavy drizzle",
		61: "Rain", 63: "Moderate rain", 65: "Heavy rain",
		71: "Snow", 73: "Moderate snow", 75: "Heavy snow",
		77: "Snow grains", 80: "Showers", 81: "Heavy showers",
		85: "Snow showers", 86: "Heavy snow showers",
		95: "Thunderstorm", 96: "Thunderstorm with hail",
	},
	domain.LangKazakh: {
		0: "Ашық", 1: "Аздап бұлтты", 2: "Бұлтты", 3: "Тұтас бұлтты",
		45: "Тұман", 48: "Қырау",
		51: "Сіркіреме", 53: "Сіркіреме", 55: "Қатты сіркіреме",
		61: "Жаңбыр", 63: "Орташа жаңбыр", 65: "Қатты жаңбыр",
		71: "Қар", 73: "Орташа қар", 75: "Қалың қар",
		77: "Қар түйіршіктері", 80: "Нөсер", 81: "Қатты нөсер",
		85: "Қар жауыны", 86: "Қатты қар жауыны",
		95: "Найзағай", 96: "Бұршақты найзағай",
	},
}

// WeatherText renders a WMO code in the given language
func WeatherText(code *int, lang domain.Language) string {
	l := labelsFor(lang)
	if code == nil {
		return l.noData
	}
	codes, ok := weatherCodes[lang]
	if !ok {
		codes = weatherCodes[domain.DefaultLanguage]
	}
	if text, ok := codes[*code]; ok {
		return text
	}
	return fmt.Sprintf(l.code, *code)
}

// Format renders the forecast as plain text lines, marking targetDate
// (YYYY-MM-DD) when it is one of the forecast days
func Format(f *domain.Forecast, targetDate string, lang domain.Language) string {
	l := labelsFor(lang)
	if f == nil || len(f.Daily) == 0 {
		return l.unavailable
	}

	lines := []string{l.header}
	for _, day := range f.Daily {
		parts := []string{fmt.Sprintf("  %s: %s..%s°C (%s %s°C), %s",
			day.Date, num(day.TempMin), num(day.TempMax), l.average, num(day.TempMean),
			WeatherText(day.WeatherCode, lang))}

		if day.Precipitation != nil && *day.Precipitation > 0 {
			parts = append(parts, fmt.Sprintf(l.precip, num(day.Precipitation)))
		}
		parts = append(parts, fmt.Sprintf(l.wind, num(day.WindMax)))
		if day.AQIMean != nil && *day.AQIMean > 0 {
			parts = append(parts, fmt.Sprintf("AQI ~%d", *day.AQIMean))
		}
		if targetDate != "" && day.Date == targetDate {
			parts = append(parts, l.target)
		}
		lines = append(lines, strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

func labelsFor(lang domain.Language) formatLabels {
	if l, ok := labels[lang]; ok {
		return l
	}
	return labels[domain.DefaultLanguage]
}

func num(v *float64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
