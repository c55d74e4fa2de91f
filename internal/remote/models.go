package remote

import "github.com/CZERTAINLY/Sniffer/internal/model"

type Model struct {
	ID   string
	Name string
}

// Models known to produce usable output for the analysis prompt.
// Any other model id accepted by the endpoint works too.
var Models = []Model{
	{ID: model.DefaultModel, Name: "Mistral 7B Instruct"},
	{ID: "nvidia/llama-3.1-nemotron-nano-8b-v1:free", Name: "Llama 3.1 Nemotron Nano 8B"},
	{ID: "qwen/qwen-2.5-coder-32b-instruct:free", Name: "Qwen 2.5 Coder 32B Instruct"},
}
