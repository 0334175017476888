package services

import "testing"

func TestGenerateQuestionID(t *testing.T) {
	id, err := GenerateQuestionID(nil)
	if err != nil {
		t.Fatalf("GenerateQuestionID: %v", err)
	}
	if len(id) != 6 {
		t.Fatalf("id %q is not 6 digits", id)
	}
	if id[0] == '0' {
		t.Fatalf("id %q has a leading zero", id)
	}
}

func TestGenerateQuestionIDAvoidsExclusionSet(t *testing.T) {
	existing := map[string]struct{}{
		"100000": {}, "123456": {}, "999999": {},
	}
	for i := 0; i < 100; i++ {
		id, err := GenerateQuestionID(existing)
		if err != nil {
			t.Fatalf("GenerateQuestionID: %v", err)
		}
		if _, taken := existing[id]; taken {
			t.Fatalf("returned excluded id %q", id)
		}
	}
}
