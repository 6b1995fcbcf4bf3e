package normalize

import "regexp"

const unknownSubject = "不明"

var medicalSubjects = map[int]string{
	1:  "消化管",
	2:  "肝・胆・膵",
	3:  "循環器",
	4:  "代謝・内分泌",
	5:  "腎",
	6:  "免疫・膠原病",
	7:  "血液",
	8:  "感染症",
	9:  "呼吸器",
	10: "神経",
	11: "中毒",
	12: "救急",
	13: "麻酔科",
	14: "眼科",
	15: "耳鼻咽喉科",
	16: "整形外科",
	17: "精神科",
	18: "皮膚科",
	19: "泌尿器科",
	20: "放射線科",
	21: "小児科",
	22: "産科",
	23: "婦人科",
	24: "乳腺外科",
	25: "老年医学",
	26: "公衆衛生",
	27: "医学総論",
}

var cbtSubjects = map[int]string{
	1: "A",
	2: "B",
	3: "C",
	4: "D",
	5: "E",
	6: "F",
	7: "多肢",
	8: "4連問",
}

// DR + 2-digit year + 2-digit exam type.
var examTypePattern = regexp.MustCompile(`^DR\d{2}(\d{2})`)

const cbtExamType = "04"

// IsCBT reports whether id belongs to the CBT exam type.
func IsCBT(id string) bool {
	m := examTypePattern.FindStringSubmatch(id)
	return m != nil && m[1] == cbtExamType
}

// SubjectFor resolves a category code to its subject name. The table is chosen
// by the exam type encoded in id.
func SubjectFor(code, id string) string {
	n, ok := leadingInt(code)
	if !ok {
		return unknownSubject
	}
	table := medicalSubjects
	if IsCBT(id) {
		table = cbtSubjects
	}
	if s, ok := table[n]; ok {
		return s
	}
	return unknownSubject
}

// leadingInt parses the ASCII digits at the start of s, so "3 循環器" yields 3.
func leadingInt(s string) (int, bool) {
	n, digits := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		digits++
		if digits > 6 {
			return 0, false
		}
	}
	return n, digits > 0
}
