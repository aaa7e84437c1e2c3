package platform

import "strings"

var windowsSystemDirs = []string{
	`\windows\system32\`,
	`\windows\syswow64\`,
	`\windows\winsxs\`,
	`\windows\microsoft.net\`,
	`\windows\assembly\`,
	`\windows\systemapps\`,
	`\windows\servicing\`,
	`\windows\immersivecontrolpanel\`,
	`\windows\systemresources\`,
}

var windowsSystemDLLs = map[string]bool{
	"ntdll.dll":             true,
	"kernel32.dll":          true,
	"kernelbase.dll":        true,
	"user32.dll":            true,
	"gdi32.dll":             true,
	"advapi32.dll":          true,
	"shell32.dll":           true,
	"ole32.dll":             true,
	"oleaut32.dll":          true,
	"msvcrt.dll":            true,
	"combase.dll":           true,
	"rpcrt4.dll":            true,
	"sechost.dll":           true,
	"bcrypt.dll":            true,
	"bcryptprimitives.dll":  true,
	"ucrtbase.dll":          true,
	"msvcp_win.dll":         true,
	"win32u.dll":            true,
	"gdi32full.dll":         true,
	"msctf.dll":             true,
	"imm32.dll":             true,
	"ws2_32.dll":            true,
	"nsi.dll":               true,
	"powrprof.dll":          true,
	"umpdc.dll":             true,
	"cryptbase.dll":         true,
	"cfgmgr32.dll":          true,
	"shlwapi.dll":           true,
	"shcore.dll":            true,
	"profapi.dll":           true,
	"setupapi.dll":          true,
	"clbcatq.dll":           true,
	"wintrust.dll":          true,
	"crypt32.dll":           true,
	"msasn1.dll":            true,
	"imagehlp.dll":          true,
	"devobj.dll":            true,
	"uxtheme.dll":           true,
	"dwmapi.dll":            true,
	"dxgi.dll":              true,
	"d3d11.dll":             true,
	"dwrite.dll":            true,
	"dinput8.dll":           true,
	"version.dll":           true,
	"winhttp.dll":           true,
	"wininet.dll":           true,
	"urlmon.dll":            true,
	"iertutil.dll":          true,
	"dnsapi.dll":            true,
	"iphlpapi.dll":          true,
	"mswsock.dll":           true,
	"secur32.dll":           true,
	"sspicli.dll":           true,
	"dbghelp.dll":           true,
	"dbgcore.dll":           true,
}

// WindowsHandler Windows平台处理器
type WindowsHandler struct{}

func (h *WindowsHandler) Name() string { return "windows" }

func (h *WindowsHandler) IsSystemLibrary(name, path string) bool {
	nameLower := strings.ToLower(name)
	pathLower := strings.ReplaceAll(strings.ToLower(path), "/", `\`)

	if windowsSystemDLLs[nameLower] {
		return true
	}
	for _, sysDir := range windowsSystemDirs {
		if strings.Contains(pathLower, sysDir) {
			return true
		}
	}
	if strings.HasPrefix(nameLower, "vcruntime") || strings.HasPrefix(nameLower, "msvcp") {
		return true
	}
	return strings.HasPrefix(nameLower, "api-ms-win-") || strings.HasPrefix(nameLower, "ext-ms-")
}

func (h *WindowsHandler) Classify(name, path string) string {
	if h.IsSystemLibrary(name, path) {
		return "system"
	}
	return "app"
}

func (h *WindowsHandler) GetExtractionOrder() []string {
	return []string{"disk_copy", "memory_dump"}
}
