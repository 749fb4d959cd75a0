package insight

import (
	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/domain"
)

type locale struct {
	dateLayout string
	heading    string // date, season
	seasons    map[domain.Season]string
	seasonWhy  map[domain.Season]string
	bands      map[aqi.Category]string // index
	congestion string                  // level, index
	levels     map[string]string
	dayParts   map[DayPart]string

	liveData      string
	historyData   string
	lagsEstimated string
	blend         string // model share, baseline share
	baselineOnly  string // samples
	noMonthData   string
	noHistory     string
	tempMeasured  string // temperature
	tempSeasonal  string // temperature
	tempUnknown   string
	tempAdjusted  string // slope
}

var locales = map[domain.Language]locale{
	domain.LangRussian: {
		dateLayout: "02.01.2006",
		heading:    "Прогноз на %s (%s).",
		seasons: map[domain.Season]string{
			domain.SeasonWinter: "зима",
			domain.SeasonSpring: "весна",
			domain.SeasonSummer: "лето",
			domain.SeasonAutumn: "осень",
		},
		seasonWhy: map[domain.Season]string{
			domain.SeasonWinter: "Зимой угольное отопление и температурные инверсии удерживают смог над городом",
			domain.SeasonSpring: "Переходный сезон с переменчивыми условиями",
			domain.SeasonSummer: "Летом нет выбросов от отопления, а сезон отпусков снижает трафик",
			domain.SeasonAutumn: "Переходный сезон, с октября начинается отопительный период",
		},
		bands: map[aqi.Category]string{
			aqi.Good:               "Качество воздуха хорошее (AQI %d). Подходящие условия для прогулок.",
			aqi.Moderate:           "Умеренное загрязнение воздуха (AQI %d). Чувствительным людям стоит сократить время на улице.",
			aqi.UnhealthySensitive: "Воздух вреден для чувствительных групп (AQI %d). На улице рекомендуются маски N95.",
			aqi.Unhealthy:          "Нездоровый воздух (AQI %d). Ограничьте пребывание на улице.",
			aqi.VeryUnhealthy:      "Очень нездоровый воздух (AQI %d). Оставайтесь в помещении и закройте окна.",
		},
		congestion: "Загруженность дорог: %s (%.1f%%).",
		levels: map[string]string{
			domain.CongestionFreeFlow: "свободно",
			domain.CongestionLight:    "низкая",
			domain.CongestionModerate: "средняя",
			domain.CongestionHeavy:    "высокая",
			domain.CongestionSevere:   "пробки",
		},
		dayParts: map[DayPart]string{
			Morning: "Утренний час пик: выезжайте заранее или пользуйтесь общественным транспортом.",
			Day:     "Днём движение обычно спокойнее утреннего пика.",
			Evening: "Вечерний час пик: ожидайте задержек на основных магистралях.",
			Night:   "Ночью дороги свободнее, но зимой смог к утру усиливается.",
		},
		liveData:      "Использованы текущие показания датчиков",
		historyData:   "Использованы исторические данные и сезонные средние",
		lagsEstimated: "Значения за предыдущие дни оценены по сезонным средним",
		blend:         "Модель ML (%d%%) совмещена со статистической базой (%d%%)",
		baselineOnly:  "Статистическая база по истории месяца (%d дн.)",
		noMonthData:   "Недостаточно данных за этот месяц, использованы общие средние",
		noHistory:     "Исторические данные недоступны, использованы сезонные оценки",
		tempMeasured:  "Температура %.1f°C",
		tempSeasonal:  "Температура %.1f°C (сезонная средняя)",
		tempUnknown:   "Температура неизвестна",
		tempAdjusted:  "Поправка на температуру: %.2f AQI на 1°C",
	},
	domain.LangEnglish: {
		dateLayout: "Jan 2, 2006",
		heading:    "Forecast for %s (%s).",
		seasons: map[domain.Season]string{
			domain.SeasonWinter: "winter",
			domain.SeasonSpring: "spring",
			domain.SeasonSummer: "summer",
			domain.SeasonAutumn: "autumn",
		},
		seasonWhy: map[domain.Season]string{
			domain.SeasonWinter: "Coal heating and temperature inversions trap smog over the city in winter",
			domain.SeasonSpring: "Transitional season with variable conditions",
			domain.SeasonSummer: "Summer has no heating emissions and the vacation season reduces traffic",
			domain.SeasonAutumn: "Transitional season; the heating period starts in October",
		},
		bands: map[aqi.Category]string{
			aqi.Good:               "Air quality is good (AQI %d). Fine conditions for outdoor activities.",
			aqi.Moderate:           "Moderate air pollution (AQI %d). Sensitive people should limit time outdoors.",
			aqi.UnhealthySensitive: "Unhealthy for sensitive groups (AQI %d). N95 masks are recommended outdoors.",
			aqi.Unhealthy:          "Unhealthy air (AQI %d). Limit time outdoors.",
			aqi.VeryUnhealthy:      "Very unhealthy air (AQI %d). Stay indoors and keep windows closed.",
		},
		congestion: "Road congestion: %s (%.1f%%).",
		levels: map[string]string{
			domain.CongestionFreeFlow: "free flow",
			domain.CongestionLight:    "light",
			domain.CongestionModerate: "moderate",
			domain.CongestionHeavy:    "heavy",
			domain.CongestionSevere:   "severe",
		},
		dayParts: map[DayPart]string{
			Morning: "Morning rush hour: leave early or use public transport.",
			Day:     "Midday traffic is usually lighter than the morning peak.",
			Evening: "Evening rush hour: expect delays on the main avenues.",
			Night:   "Roads are quieter at night, but winter smog builds up towards morning.",
		},
		liveData:      "Live sensor readings were used",
		historyData:   "Historical data and seasonal averages were used",
		lagsEstimated: "Previous-day values were estimated from seasonal averages",
		blend:         "ML model (%d%%) blended with the statistical baseline (%d%%)",
		baselineOnly:  "Statistical baseline from the month's history (%d days)",
		noMonthData:   "Not enough data for this month; overall averages were used",
		noHistory:     "Historical data unavailable; seasonal estimates were used",
		tempMeasured:  "Temperature %.1f°C",
		tempSeasonal:  "Temperature %.1f°C (seasonal average)",
		tempUnknown:   "Temperature unknown",
		tempAdjusted:  "Temperature adjustment: %.2f AQI per 1°C",
	},
	domain.LangKazakh: {
		dateLayout: "02.01.2006",
		heading:    "%s болжамы (%s).",
		seasons: map[domain.Season]string{
			domain.SeasonWinter: "қыс",
			domain.SeasonSpring: "көктем",
			domain.SeasonSummer: "жаз",
			domain.SeasonAutumn: "күз",
		},
		seasonWhy: map[domain.Season]string{
			domain.SeasonWinter: "Қыста көмірмен жылыту мен температуралық инверсия қала үстінде түтінді ұстап тұрады",
			domain.SeasonSpring: "Ауыспалы маусым, жағдай құбылмалы",
			domain.SeasonSummer: "Жазда жылыту шығарындылары жоқ, демалыс маусымы көлік ағынын азайтады",
			domain.SeasonAutumn: "Ауыспалы маусым, қазаннан бастап жылыту кезеңі басталады",
		},
		bands: map[aqi.Category]string{
			aqi.Good:               "Ауа сапасы жақсы (AQI %d). Серуендеуге қолайлы.",
			aqi.Moderate:           "Ауа орташа ластанған (AQI %d). Сезімтал адамдарға далада аз болған жөн.",
			aqi.UnhealthySensitive: "Ауа сезімтал топтарға зиянды (AQI %d). Далада N95 маскасы ұсынылады.",
			aqi.Unhealthy:          "Ауа денсаулыққа зиянды (AQI %d). Далада болуды шектеңіз.",
			aqi.VeryUnhealthy:      "Ауа өте зиянды (AQI %d). Үйде болып, терезелерді жабыңыз.",
		},
		congestion: "Жол жүктемесі: %s (%.1f%%).",
		levels: map[string]string{
			domain.CongestionFreeFlow: "бос",
			domain.CongestionLight:    "төмен",
			domain.CongestionModerate: "орташа",
			domain.CongestionHeavy:    "жоғары",
			domain.CongestionSevere:   "кептеліс",
		},
		dayParts: map[DayPart]string{
			Morning: "Таңғы қарбалас уақыт: ертерек шығыңыз немесе қоғамдық көлікті пайдаланыңыз.",
			Day:     "Күндіз қозғалыс әдетте таңғы қарбаластан тынышырақ.",
			Evening: "Кешкі қарбалас уақыт: негізгі даңғылдарда кідіріс болуы мүмкін.",
			Night:   "Түнде жолдар бос, бірақ қыста таңға қарай түтін күшейеді.",
		},
		liveData:      "Датчиктердің ағымдағы көрсеткіштері пайдаланылды",
		historyData:   "Тарихи деректер мен маусымдық орташа мәндер пайдаланылды",
		lagsEstimated: "Алдыңғы күндердің мәндері маусымдық орташа бойынша бағаланды",
		blend:         "ML моделі (%d%%) статистикалық базамен (%d%%) біріктірілді",
		baselineOnly:  "Айдың тарихы бойынша статистикалық база (%d күн)",
		noMonthData:   "Бұл айға деректер жеткіліксіз, жалпы орташа мәндер пайдаланылды",
		noHistory:     "Тарихи деректер жоқ, маусымдық бағалаулар пайдаланылды",
		tempMeasured:  "Температура %.1f°C",
		tempSeasonal:  "Температура %.1f°C (маусымдық орташа)",
		tempUnknown:   "Температура белгісіз",
		tempAdjusted:  "Температураға түзету: 1°C үшін %.2f AQI",
	},
}

func localeFor(lang domain.Language) locale {
	if l, ok := locales[lang]; ok {
		return l
	}
	return locales[domain.DefaultLanguage]
}
