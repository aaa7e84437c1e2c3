package backend

import (
	_ "embed"
	"encoding/hex"
	"fmt"

	"github.com/frida/frida-go/frida"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

//go:embed scripts/scanner_agent.js
var scannerAgentJS string

//go:embed scripts/extractor_agent.js
var extractorAgentJS string

// fridaScanAgent 基于Frida脚本RPC的扫描代理
type fridaScanAgent struct {
	script *frida.Script
	logger *logrus.Logger
}

// rpcCall 调用脚本RPC导出并把结果解码到out
func (a *fridaScanAgent) rpcCall(fn string, out any, args ...any) error {
	ret := a.script.ExportsCall(fn, args...)
	if err, ok := ret.(error); ok {
		return fmt.Errorf("%w: rpc %s: %v", ErrScript, fn, err)
	}
	if out == nil || ret == nil {
		return nil
	}
	if err := mapstructure.WeakDecode(ret, out); err != nil {
		return fmt.Errorf("%w: rpc %s: decode result: %v", ErrScript, fn, err)
	}
	return nil
}

func (a *fridaScanAgent) EnumerateModules() ([]scanner.ModuleRecord, error) {
	var modules []scanner.ModuleRecord
	if err := a.rpcCall("enumerateModules", &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

func (a *fridaScanAgent) ScanModuleKernelLevel(moduleName string, hexPatterns []string) ([]scanner.PatternMatch, error) {
	var matches []scanner.PatternMatch
	if err := a.rpcCall("scanModuleKernelLevel", &matches, moduleName, hexPatterns); err != nil {
		return nil, err
	}
	return matches, nil
}

func (a *fridaScanAgent) CheckExports(moduleName string, symbols []string) ([]string, error) {
	var found []string
	if err := a.rpcCall("checkExports", &found, moduleName, symbols); err != nil {
		return nil, err
	}
	return found, nil
}

func (a *fridaScanAgent) ScanForStrings(moduleName string, hexPatterns []string) ([]string, error) {
	var found []string
	if err := a.rpcCall("scanForStrings", &found, moduleName, hexPatterns); err != nil {
		return nil, err
	}
	return found, nil
}

func (a *fridaScanAgent) Close() error {
	return a.script.Unload()
}

// chunkPayload 提取代理消息里的数据块负载
// 块内容以十六进制编码内联在JSON消息中传输
type chunkPayload struct {
	Type    string `mapstructure:"type"`
	Offset  int64  `mapstructure:"offset"`
	Hex     string `mapstructure:"hex"`
	Final   bool   `mapstructure:"final"`
	Failed  bool   `mapstructure:"failed"`
	Message string `mapstructure:"message"`
}

// fridaExtractorAgent 基于Frida脚本的提取代理
type fridaExtractorAgent struct {
	script *frida.Script
	logger *logrus.Logger
}

func (a *fridaExtractorAgent) DumpModuleChunks(moduleName string, chunkSize int) error {
	ret := a.script.ExportsCall("dumpModuleChunks", moduleName, chunkSize)
	if err, ok := ret.(error); ok {
		return fmt.Errorf("%w: rpc dumpModuleChunks: %v", ErrScript, err)
	}
	return nil
}

func (a *fridaExtractorAgent) ReadFileChunks(path string, chunkSize int) error {
	ret := a.script.ExportsCall("readFileChunks", path, chunkSize)
	if err, ok := ret.(error); ok {
		return fmt.Errorf("%w: rpc readFileChunks: %v", ErrScript, err)
	}
	return nil
}

func (a *fridaExtractorAgent) Close() error {
	return a.script.Unload()
}

// extractorMessageHandler 把脚本消息转成ChunkHandler回调
func extractorMessageHandler(handler ChunkHandler, logger *logrus.Logger) func(data string) {
	return func(data string) {
		msg, err := frida.ScriptMessageToMessage(data)
		if err != nil {
			logger.Debugf("Failed to parse script message: %v", err)
			return
		}
		switch msg.Type {
		case frida.MessageTypeSend:
			if !msg.IsPayloadMap {
				return
			}
			var payload chunkPayload
			if err := mapstructure.WeakDecode(msg.Payload, &payload); err != nil {
				logger.Debugf("Failed to decode chunk payload: %v", err)
				return
			}
			switch payload.Type {
			case "chunk":
				if payload.Failed {
					handler.OnError("remote read failed")
					return
				}
				chunkData, err := hex.DecodeString(payload.Hex)
				if err != nil {
					handler.OnError("invalid chunk encoding: " + err.Error())
					return
				}
				handler.OnChunk(Chunk{
					Offset: payload.Offset,
					Data:   chunkData,
					Final:  payload.Final,
				})
			case "error":
				handler.OnError(payload.Message)
			}
		case frida.MessageTypeError:
			handler.OnError(msg.Description)
		}
	}
}
