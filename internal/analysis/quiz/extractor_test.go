package quiz

import "testing"

const sampleQuiz = `<!DOCTYPE html>
<html><body><p>Q1: What pigment drives photosynthesis?</p></body></html>`

func TestExtractSingleBlock(t *testing.T) {
	content := "Here is your quiz:\n\n```html-quiz\n" + sampleQuiz + "\n```\n\nGood luck!"

	quizzes := Extract(content)
	if len(quizzes) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(quizzes))
	}
	if quizzes[0] != sampleQuiz {
		t.Fatalf("unexpected quiz body %q", quizzes[0])
	}
}

func TestExtractMultipleBlocks(t *testing.T) {
	content := "```html-quiz\n<html>one</html>\n```\ntext\n```html-quiz\n<html>two</html>\n```"

	quizzes := Extract(content)
	if len(quizzes) != 2 {
		t.Fatalf("expected 2 quizzes, got %d", len(quizzes))
	}
	if quizzes[0] != "<html>one</html>" || quizzes[1] != "<html>two</html>" {
		t.Fatalf("unexpected quizzes %v", quizzes)
	}
}

func TestExtractIgnoresPlainCodeFences(t *testing.T) {
	content := "```html\n<html>not a quiz</html>\n```"

	if quizzes := Extract(content); len(quizzes) != 0 {
		t.Fatalf("expected no quizzes, got %v", quizzes)
	}
}

func TestExtractIgnoresUnterminatedBlock(t *testing.T) {
	content := "```html-quiz\n<html>cut off mid-stream"

	if quizzes := Extract(content); len(quizzes) != 0 {
		t.Fatalf("expected no quizzes, got %v", quizzes)
	}
}

func TestExtractNoBlocks(t *testing.T) {
	if quizzes := Extract("plain markdown answer"); len(quizzes) != 0 {
		t.Fatalf("expected no quizzes, got %v", quizzes)
	}
}
