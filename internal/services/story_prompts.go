package services

import "fmt"

// BuildStoryPrompt wraps the user prompt with the story writing instructions.
// The "# " title line is what utils.ExtractTitle looks for.
func BuildStoryPrompt(prompt string) string {
	return fmt.Sprintf("Write a short story (around 300-400 words) based on this prompt: %s. "+
		"The story should have a clear title as the very first line, starting with '# ' (e.g., '# The Lost Kitten'). "+
		"Ensure the story is engaging and creative.", prompt)
}

// BuildIllustrationPrompt asks for one storybook image for a paragraph summary
func BuildIllustrationPrompt(title, prompt, summary string) string {
	return fmt.Sprintf("Generate one illustration as an image for a children's story titled '%s' about: '%s'. "+
		"Illustrate this moment of the story: '%s'. "+
		"Focus on a key scene or character. The image should be suitable for a storybook.", title, prompt, summary)
}
