// Test program to demonstrate grouping and contradiction flagging offline.
// It runs the synthesizer on the mock backend with fixed vectors, so no
// model service is needed.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/synth"
)

type sample struct {
	topic string
	url   string
	text  string
	vec   []float32
}

var samples = []sample{
	{"Sức khỏe & Y tế", "https://a.vn/1", "Giá thuốc tăng mạnh trong năm 2024", []float32{1, 0, 0, 0}},
	{"Sức khỏe & Y tế", "https://b.vn/2", "Giá thuốc giảm nhẹ trong năm 2024", []float32{1, 0, 0, 0}},
	{"Sức khỏe & Y tế", "https://c.vn/3", "Giá thuốc tăng 10% trong năm 2024", []float32{0.98, 0.2, 0, 0}},
	{"Thể thao", "https://a.vn/4", "Đội tuyển thắng trận mở màn", []float32{0, 0, 1, 0}},
	{"Thể thao", "https://b.vn/5", "Đội tuyển thắng 2-0 trận mở màn", []float32{0, 0, 0.97, 0.24}},
	{"Thể thao", "https://c.vn/6", "Sân vận động mới khánh thành", []float32{0, 1, 0, 0}},
}

// opposed treats "tăng" against "giảm" as a contradiction
func opposed(premise, hypothesis string) inference.NLIClass {
	up := func(s string) bool { return strings.Contains(s, "tăng") }
	down := func(s string) bool { return strings.Contains(s, "giảm") }
	if (up(premise) && down(hypothesis)) || (down(premise) && up(hypothesis)) {
		return inference.Contradiction
	}
	return inference.Neutral
}

func main() {
	fmt.Print("=== Claim Conflict Detection Test ===\n\n")

	mock := inference.NewMock(4)
	mock.NLIFunc = opposed
	claims := make([]model.Claim, len(samples))
	for i, s := range samples {
		mock.Vectors[s.text] = s.vec
		claims[i] = model.Claim{
			ArticleID:  fmt.Sprint(i + 1),
			URL:        s.url,
			Text:       s.text,
			Topic:      s.topic,
			Confidence: 0.9,
			Entities:   []model.Entity{},
			Keywords:   []string{},
		}
	}

	services := inference.Services{Embedder: mock, Classifier: mock, Recognizer: mock, Summarizer: mock, NLI: mock}
	s := synth.New(model.DefaultConfig(), services, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := s.Run(ctx, claims)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Synthesis error: %v\n", err)
		os.Exit(1)
	}

	for i, g := range res.Groups {
		d := res.Details[i]
		fmt.Printf("Group %d: %s (%s, cohesion %.3f)\n", g.GroupID, g.Topic, d.Method, d.Cohesion)
		fmt.Println(strings.Repeat("-", 60))
		for _, c := range g.Claims {
			fmt.Printf("  - %s\n", c)
		}
		if g.Conflict {
			fmt.Printf("  ⚠️  CONFLICT: %d of %d pairs contradict\n", d.Verdict.Contradictions, d.Verdict.Pairs)
		} else {
			fmt.Println("  ✓ No significant contradiction detected")
		}
		fmt.Println()
	}

	fmt.Printf("Claims: %d, groups: %d, noise: %d\n", res.Stats.Claims, res.Stats.Groups, res.Stats.Noise)
	fmt.Println("\n=== Test Complete ===")
}
