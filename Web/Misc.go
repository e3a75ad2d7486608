package Web

func Success(msg any) any {
	result := make(map[string]any)
	result["success"] = true
	result["result"] = msg
	result["error"] = nil
	return result
}

func Fail(msg any) any {
	result := make(map[string]any)
	result["success"] = false
	result["result"] = nil
	result["error"] = msg
	return result
}
