// docchat is a single-document conversational question answering service.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/docchat/internal/docchat"

	// Register LLM providers.
	_ "github.com/kart-io/docchat/pkg/llm/ollama"
	_ "github.com/kart-io/docchat/pkg/llm/openai"
)

func main() {
	docchat.NewApp().Run()
}
