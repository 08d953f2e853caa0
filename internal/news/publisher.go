package news

import (
	"net/url"
	"regexp"
	"strings"
)

// publisherByDomain maps known outlet domains to their Korean names
var publisherByDomain = map[string]string{
	"news.chosun.com":        "조선일보",
	"www.chosun.com":         "조선일보",
	"news.joins.com":         "중앙일보",
	"www.joongang.co.kr":     "중앙일보",
	"news.donga.com":         "동아일보",
	"www.donga.com":          "동아일보",
	"news.hankyung.com":      "한국경제",
	"www.hankyung.com":       "한국경제",
	"biz.chosun.com":         "조선비즈",
	"www.mk.co.kr":           "매일경제",
	"news.mk.co.kr":          "매일경제",
	"www.edaily.co.kr":       "이데일리",
	"news.mt.co.kr":          "머니투데이",
	"www.mt.co.kr":           "머니투데이",
	"www.yonhapnews.co.kr":   "연합뉴스",
	"news.yonhapnews.co.kr":  "연합뉴스",
	"www.yna.co.kr":          "연합뉴스",
	"newsis.com":             "뉴시스",
	"www.newsis.com":         "뉴시스",
	"news.kbs.co.kr":         "KBS",
	"imnews.imbc.com":        "MBC",
	"news.sbs.co.kr":         "SBS",
	"news.jtbc.joins.com":    "JTBC",
	"news.tvchosun.com":      "TV조선",
	"news.mbn.co.kr":         "MBN",
	"www.etnews.com":         "전자신문",
	"biz.newdaily.co.kr":     "뉴데일리",
	"www.fnnews.com":         "파이낸셜뉴스",
	"fnews.com":              "파이낸셜뉴스",
	"www.asiae.co.kr":        "아시아경제",
	"view.asiae.co.kr":       "아시아경제",
	"www.sedaily.com":        "서울경제",
	"news.heraldcorp.com":    "헤럴드경제",
	"biz.heraldcorp.com":     "헤럴드경제",
	"www.wowtv.co.kr":        "한국경제TV",
	"news.wowtv.co.kr":       "한국경제TV",
}

// publisherByOID maps Naver news office IDs to outlets
var publisherByOID = map[string]string{
	"001": "연합뉴스",
	"003": "뉴시스",
	"009": "매일경제",
	"011": "서울경제",
	"014": "파이낸셜뉴스",
	"015": "한국경제",
	"016": "헤럴드경제",
	"018": "이데일리",
	"020": "동아일보",
	"021": "문화일보",
	"022": "세계일보",
	"023": "조선일보",
	"025": "중앙일보",
}

var oidPattern = regexp.MustCompile(`oid=(\d+)`)

// Publisher derives the outlet name for a search item: the original
// link's domain first, then the Naver news office ID, then the domain
// stem uppercased. Returns "" when nothing matches.
func Publisher(item SearchItem) string {
	if item.OriginalLink != "" {
		parsed, err := url.Parse(item.OriginalLink)
		if err == nil && parsed.Host != "" {
			domain := strings.ToLower(parsed.Host)
			if name, ok := publisherByDomain[domain]; ok {
				return name
			}

			stem := strings.TrimPrefix(domain, "www.")
			stem = strings.TrimPrefix(stem, "news.")
			if i := strings.Index(stem, "."); i > 0 {
				stem = stem[:i]
			}
			if stem != "" {
				return strings.ToUpper(stem)
			}
		}
	}

	if strings.Contains(item.Link, "news.naver.com") {
		if m := oidPattern.FindStringSubmatch(item.Link); m != nil {
			if name, ok := publisherByOID[m[1]]; ok {
				return name
			}
		}
	}

	return ""
}
