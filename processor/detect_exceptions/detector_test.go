package detectexceptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateMachine(t *testing.T) {
	t.Run("empty languages loads all rules", func(t *testing.T) {
		sm, err := newStateMachine(nil)
		require.NoError(t, err)

		all, errAll := newStateMachine([]Language{LanguageAll})
		require.NoError(t, errAll)
		assert.Equal(t, len(all[stateStart]), len(sm[stateStart]))
	})

	t.Run("aliases share rule tables", func(t *testing.T) {
		java, err := newStateMachine([]Language{LanguageJava})
		require.NoError(t, err)
		js, err := newStateMachine([]Language{LanguageJs})
		require.NoError(t, err)
		assert.Equal(t, len(java[stateStart]), len(js[stateStart]))
	})

	t.Run("unsupported language", func(t *testing.T) {
		_, err := newStateMachine([]Language{Language("Cobol")})
		assert.Error(t, err)
	})

	t.Run("every rule pattern compiles", func(t *testing.T) {
		for _, lang := range []Language{
			LanguageJava, LanguagePython, LanguagePhp, LanguageGo,
			LanguageRuby, LanguageDart, LanguageAll,
		} {
			_, err := newStateMachine([]Language{lang})
			require.NoError(t, err, "language %s", lang)
		}
	})
}

// checkMultiline feeds lines through the detector and asserts the
// classification of the first line, the last line, and that every line in
// between is inside the trace.
func checkMultiline(
	t *testing.T,
	detector *exceptionDetector,
	expectedFirst, expectedLast detectionStatus,
	lines []string,
) {
	t.Helper()
	lastIndex := len(lines) - 1
	for i, line := range lines {
		status := detector.update(line)
		switch i {
		case 0:
			assert.Equal(t, expectedFirst, status, "first line %q", line)
		case lastIndex:
			assert.Equal(t, expectedLast, status, "last line %q", line)
		default:
			assert.Equal(t, insideTrace, status, "line %d %q", i, line)
		}
	}
}

// checkException runs a trace corpus through a fresh detector twice with
// ordinary lines in between, then immediately a third time, checking the
// boundary classifications each way.
func checkException(t *testing.T, lines []string, detectsEnd bool) {
	t.Helper()
	detector, err := newExceptionDetector(nil)
	require.NoError(t, err)

	afterExc := insideTrace
	beforeSecondExc := startTrace
	if detectsEnd {
		afterExc = endTrace
		beforeSecondExc = insideTrace
	}

	checkMultiline(t, detector, noTrace, noTrace, []string{"This is not an exception."})
	checkMultiline(t, detector, insideTrace, afterExc, lines)
	checkMultiline(t, detector, noTrace, noTrace, []string{"This is not an exception."})
	checkMultiline(t, detector, insideTrace, afterExc, lines)
	checkMultiline(t, detector, beforeSecondExc, afterExc, lines)
}

func TestDetector_Java(t *testing.T) {
	checkException(t, javaSimpleException(), false)
	checkException(t, javaComplexException(), false)
	checkException(t, javaNestedException(), false)
}

func TestDetector_Javascript(t *testing.T) {
	checkException(t, nodeJsException(), false)
	checkException(t, clientJsException(), false)
	checkException(t, v8JsException(), false)
}

func TestDetector_Go(t *testing.T) {
	checkException(t, golangException(), false)
	checkException(t, golangOnGaeException(), false)
	checkException(t, golangSignalException(), false)
	checkException(t, golangHTTPException(), false)
}

func TestDetector_Ruby(t *testing.T) {
	checkException(t, rubyException(), false)
	checkException(t, railsException(), false)
}

func TestDetector_Python(t *testing.T) {
	checkException(t, pythonException(), true)
}

func TestDetector_Reset(t *testing.T) {
	detector, err := newExceptionDetector([]Language{LanguageJava})
	require.NoError(t, err)

	status := detector.update("javax.servlet.ServletException: oops")
	require.Equal(t, insideTrace, status)
	require.NotEqual(t, stateStart, detector.currentState)

	detector.reset()
	assert.Equal(t, stateStart, detector.currentState)
}

func TestDetector_NewTraceInterruptsCurrent(t *testing.T) {
	// A line that does not continue the current trace gets a second
	// transition attempt from the start state, so it can open a new trace
	// in the same call.
	detector, err := newExceptionDetector([]Language{LanguageJava, LanguagePython})
	require.NoError(t, err)

	require.Equal(t, insideTrace, detector.update("javax.servlet.ServletException: Something bad happened"))

	status := detector.update("Traceback (most recent call last):")
	assert.Equal(t, startTrace, status)
	assert.Equal(t, statePython, detector.currentState)
}

func TestDetector_ExplicitTraceEnd(t *testing.T) {
	// The Python terminator line matches a transition back to the start
	// state, which classifies as the end of the trace.
	detector, err := newExceptionDetector([]Language{LanguagePython})
	require.NoError(t, err)

	require.Equal(t, insideTrace, detector.update("Traceback (most recent call last):"))
	require.Equal(t, insideTrace, detector.update(`  File "spam.py", line 5, in get`))
	require.Equal(t, insideTrace, detector.update("    raise Exception('spam')"))

	status := detector.update("Exception: ('spam', 'eggs')")
	assert.Equal(t, endTrace, status)
	assert.Equal(t, stateStart, detector.currentState)
}

func javaSimpleException() []string {
	return []string{
		"Jul 09, 2015 3:23:29 PM com.google.devtools.search.cloud.feeder.MakeLog: RuntimeException: Run from this message!",
		"    at com.my.app.Object.do$a1(MakeLog.java:50)",
		"    at java.lang.Thing.call(Thing.java:10)",
		"    at com.my.app.Object.help(MakeLog.java:40)",
		"    at sun.javax.API.method(API.java:100)",
		"    at com.jetty.Framework.main(MakeLog.java:30)",
	}
}

func javaComplexException() []string {
	return []string{
		"javax.servlet.ServletException: Something bad happened",
		"    at com.example.myproject.OpenSessionInViewFilter.doFilter(OpenSessionInViewFilter.java:60)",
		"    at org.mortbay.jetty.servlet.ServletHandler$CachedChain.doFilter(ServletHandler.java:1157)",
		"    at com.example.myproject.ExceptionHandlerFilter.doFilter(ExceptionHandlerFilter.java:28)",
		"    at org.mortbay.jetty.servlet.ServletHandler.handle(ServletHandler.java:388)",
		"    at org.mortbay.jetty.security.SecurityHandler.handle(SecurityHandler.java:216)",
		"    at org.mortbay.jetty.Server.handle(Server.java:326)",
		"    at org.mortbay.jetty.HttpConnection.handleRequest(HttpConnection.java:542)",
		"    at org.mortbay.jetty.HttpParser.parseNext(HttpParser.java:756)",
		"    at org.mortbay.jetty.bio.SocketConnector$Connection.run(SocketConnector.java:228)",
		"    at org.mortbay.thread.QueuedThreadPool$PoolThread.run(QueuedThreadPool.java:582)",
		"Caused by: com.example.myproject.MyProjectServletException",
		"    at com.example.myproject.MyServlet.doPost(MyServlet.java:169)",
		"    at javax.servlet.http.HttpServlet.service(HttpServlet.java:727)",
		"    at org.mortbay.jetty.servlet.ServletHolder.handle(ServletHolder.java:511)",
		"    at com.example.myproject.OpenSessionInViewFilter.doFilter(OpenSessionInViewFilter.java:30)",
		"    ... 27 common frames omitted",
	}
}

func javaNestedException() []string {
	return []string{
		"java.lang.RuntimeException: javax.mail.SendFailedException: Invalid Addresses;",
		"  nested exception is:",
		"com.sun.mail.smtp.SMTPAddressFailedException: 550 5.7.1 Relaying denied",
		"",
		"    at com.nethunt.crm.api.server.adminsync.AutomaticEmailFacade.sendWithSmtp(AutomaticEmailFacade.java:236)",
		"    at com.nethunt.crm.api.server.adminsync.AutomaticEmailFacade.sendSingleEmail(AutomaticEmailFacade.java:285)",
		"    at java.util.Optional.ifPresent(Optional.java:159)",
		"    at com.nethunt.crm.api.email.EmailSender.lambda$notifyPerson$0(EmailSender.java:80)",
		"    at java.base/java.util.concurrent.ThreadPoolExecutor.runWorker(ThreadPoolExecutor.java:1149)",
		"    at java.base/java.lang.Thread.run(Thread.java:748)",
		"Caused by: javax.mail.SendFailedException: Invalid Addresses;",
		"  nested exception is:",
		"com.sun.mail.smtp.SMTPAddressFailedException: 550 5.7.1 Relaying denied",
		"",
		"    at com.sun.mail.smtp.SMTPTransport.rcptTo(SMTPTransport.java:2064)",
		"    at com.sun.mail.smtp.SMTPTransport.sendMessage(SMTPTransport.java:1286)",
		"    ... 12 more",
		"Caused by: com.sun.mail.smtp.SMTPAddressFailedException: 550 5.7.1 Relaying denied",
	}
}

func nodeJsException() []string {
	return []string{
		"ReferenceError: myArray is not defined",
		"  at next (/app/node_modules/express/lib/router/index.js:256:14)",
		"  at /app/node_modules/express/lib/router/index.js:615:15",
		"  at next (/app/node_modules/express/lib/router/index.js:271:10)",
		"  at Function.process_params (/app/node_modules/express/lib/router/index.js:330:12)",
		"  at Layer.handle [as handle_request] (/app/node_modules/express/lib/router/layer.js:95:5)",
		"  at Route.dispatch (/app/node_modules/express/lib/router/route.js:112:3)",
		"  at /app/app.js:52:3",
	}
}

func clientJsException() []string {
	return []string{
		"Error",
		"    at bls (<anonymous>:3:9)",
		"    at <anonymous>:6:4",
		"    at a_function_name        ",
		"    at Object.InjectedScript._evaluateOn (http://<anonymous>/file.js?foo=bar:875:140)",
		"    at Object.InjectedScript.evaluate (<anonymous>)",
	}
}

func v8JsException() []string {
	return []string{
		"V8 errors stack trace   ",
		"  eval at Foo.a (eval at Bar.z (myscript.js:10:3))",
		"  at new Contructor.Name (native)",
		"  at new FunctionName (unknown location)",
		"  at Type.functionName [as methodName] (file(copy).js?query='yes':12:9)",
		"  at functionName [as methodName] (native)",
		"  at Type.main(sample(copy).js:6:4)",
	}
}

func golangException() []string {
	return []string{
		"panic: my panic",
		"",
		"goroutine 4 [running]:",
		"panic(0x45cb40, 0x47ad70)",
		"\t/usr/local/go/src/runtime/panic.go:542 +0x46c fp=0xc42003f7b8 sp=0xc42003f710 pc=0x422f7c",
		"main.main.func1(0xc420024120)",
		"\tfoo.go:6 +0x39 fp=0xc42003f7d8 sp=0xc42003f7b8 pc=0x451339",
		"runtime.goexit()",
		"\t/usr/local/go/src/runtime/asm_amd64.s:2337 +0x1 fp=0xc42003f7e0 sp=0xc42003f7d8 pc=0x44b4d1",
		"created by main.main",
		"\tfoo.go:5 +0x58",
		"",
		"goroutine 1 [chan receive]:",
		"runtime.gopark(0x4739b8, 0xc420024178, 0x46fcd7, 0xc, 0xc420028e17, 0x3)",
		"\t/usr/local/go/src/runtime/proc.go:280 +0x12c fp=0xc420053e30 sp=0xc420053e00 pc=0x42503c",
		"runtime.chanrecv1(0xc420024120, 0x0)",
		"\t/usr/local/go/src/runtime/chan.go:388 +0x2b fp=0xc420053f50 sp=0xc420053f20 pc=0x40439b",
		"main.main()",
		"\tfoo.go:9 +0x6f fp=0xc420053f80 sp=0xc420053f50 pc=0x4512ef",
		"runtime.main()",
		"\t/usr/local/go/src/runtime/proc.go:185 +0x20d fp=0xc420053fe0 sp=0xc420053f80 pc=0x424bad",
		"runtime.goexit()",
		"\t/usr/local/go/src/runtime/asm_amd64.s:2337 +0x1 fp=0xc420053fe8 sp=0xc420053fe0 pc=0x44b4d1",
	}
}

func golangOnGaeException() []string {
	return []string{
		"panic: runtime error: index out of range",
		"",
		"goroutine 12 [running]:",
		"main88989.memoryAccessException()",
		"\tcrash_example_go.go:58 +0x12a",
		"main88989.handler(0x2afb7042a408, 0xc01042f880, 0xc0104d3450)",
		"\tcrash_example_go.go:36 +0x7ec",
		"net/http.HandlerFunc.ServeHTTP(0x13e5128, 0x2afb7042a408, 0xc01042f880, 0xc0104d3450)",
		"\tgo/src/net/http/server.go:1265 +0x56",
		"net/http.(*ServeMux).ServeHTTP(0xc01045cab0, 0x2afb7042a408, 0xc01042f880, 0xc0104d3450)",
		"\tgo/src/net/http/server.go:1541 +0x1b4",
		"appengine_internal.executeRequestSafely(0xc01042f880, 0xc0104d3450)",
		"\tgo/src/appengine_internal/api_prod.go:288 +0xb7",
		"appengine_internal.(*server).HandleRequest(0x15819b0, 0xc010401560, 0xc0104c8180, 0xc010431380, 0x0, 0x0)",
		"\tgo/src/appengine_internal/api_prod.go:222 +0x102b",
		"reflect.Value.call(0x1243fe0, 0x15819b0, 0x113, 0x12c8a20, 0x4, 0xc010485f78, 0x3, 0x3, 0x0, 0x0, ...)",
		"\t/tmp/appengine/go/src/reflect/value.go:419 +0x10fd",
		"reflect.Value.Call(0x1243fe0, 0x15819b0, 0x113, 0xc010485f78, 0x3, 0x3, 0x0, 0x0, 0x0)",
		"\t/tmp/ap",
	}
}

func golangSignalException() []string {
	return []string{
		"panic: runtime error: invalid memory address or nil pointer dereference",
		"[signal SIGSEGV: segmentation violation code=0x1 addr=0x0 pc=0x7fd34f]",
		"",
		"goroutine 5 [running]:",
		"panics.nilPtrDereference()",
		"\tpanics/panics.go:33 +0x1f",
		"panics.Wait()",
		"\tpanics/panics.go:16 +0x3b",
		"created by main.main",
		"\tserver.go:20 +0x91",
	}
}

func golangHTTPException() []string {
	return []string{
		"2019/01/15 07:48:05 http: panic serving [::1]:54143: test panic",
		"goroutine 24 [running]:",
		"net/http.(*conn).serve.func1(0xc00007eaa0)",
		"\t/usr/local/go/src/net/http/server.go:1746 +0xd0",
		"panic(0x12472a0, 0x12ece10)",
		"\t/usr/local/go/src/runtime/panic.go:513 +0x1b9",
		"main.doPanic(0x12f0ea0, 0xc00010e1c0, 0xc000104400)",
		"\t/Users/ingvar/src/go/src/httppanic.go:8 +0x39",
		"net/http.serverHandler.ServeHTTP(0xc000085040, 0x12f0ea0, 0xc00010e1c0, 0xc000104400)",
		"\t/usr/local/go/src/net/http/server.go:2741 +0xab",
		"created by net/http.(*Server).Serve",
		"\t/usr/local/go/src/net/http/server.go:2851 +0x2f5",
	}
}

func rubyException() []string {
	return []string{
		" NoMethodError (undefined method `resursivewordload' for #<BooksController:0x007f8dd9a0c738>):",
		"  app/controllers/books_controller.rb:69:in `recursivewordload'",
		"  app/controllers/books_controller.rb:75:in `loadword'",
		"  app/controllers/books_controller.rb:79:in `loadline'",
		"  app/controllers/books_controller.rb:87:in `loadpage'",
		"  app/controllers/books_controller.rb:99:in `requestload'",
		"  config/error_reporting_logger.rb:62:in `tagged'",
	}
}

func railsException() []string {
	return []string{
		` ActionController::RoutingError (No route matches [GET] "/settings"):`,
		"  ",
		"  actionpack (5.1.4) lib/action_dispatch/middleware/debug_exceptions.rb:63:in `call'",
		"  actionpack (5.1.4) lib/action_dispatch/middleware/show_exceptions.rb:31:in `call'",
		"  railties (5.1.4) lib/rails/rack/logger.rb:36:in `call_app'",
		"  activesupport (5.1.4) lib/active_support/tagged_logging.rb:69:in `block in tagged'",
		"  activesupport (5.1.4) lib/active_support/tagged_logging.rb:26:in `tagged'",
		"  railties (5.1.4) lib/rails/rack/logger.rb:24:in `call'",
		"  rack (2.0.3) lib/rack/method_override.rb:22:in `call'",
		"  rack (2.0.3) lib/rack/sendfile.rb:111:in `call'",
		"  railties (5.1.4) lib/rails/engine.rb:522:in `call'",
		"  puma (3.10.0) lib/puma/configuration.rb:225:in `call'",
		"  puma (3.10.0) lib/puma/server.rb:605:in `handle_request'",
		"  puma (3.10.0) lib/puma/thread_pool.rb:120:in `block in spawn_thread'",
	}
}

func pythonException() []string {
	return []string{
		"Traceback (most recent call last):",
		`  File "/base/data/home/runtimes/python27/python27_lib/versions/third_party/webapp2-2.5.2/webapp2.py", line 1535, in __call__`,
		"    rv = self.handle_exception(request, response, e)",
		`  File "/base/data/home/apps/s~nearfieldspy/1.378705245900539993/nearfieldspy.py", line 17, in start`,
		"    return get()",
		`  File "/base/data/home/apps/s~nearfieldspy/1.378705245900539993/nearfieldspy.py", line 5, in get`,
		"    raise Exception('spam', 'eggs')",
		"Exception: ('spam', 'eggs')",
	}
}
